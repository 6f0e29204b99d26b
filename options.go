package arisankit

import "time"

// DefaultIdempotencyTTL bounds how long a duplicate-submission guard is held
// when the holder never releases it (crash, lost context).
const DefaultIdempotencyTTL = 2 * time.Minute

// SessionOption configures a Session at construction time.
type SessionOption func(*Session)

// WithPollInterval overrides how often the session re-queries the wallet for
// the active account.
func WithPollInterval(interval time.Duration) SessionOption {
	return func(s *Session) {
		if interval > 0 {
			s.pollInterval = interval
		}
	}
}

// WithSessionChainID overrides the network envelopes are signed for when the
// caller passes chain id zero.
func WithSessionChainID(chainID uint64) SessionOption {
	return func(s *Session) {
		if chainID != 0 {
			s.chainID = chainID
		}
	}
}

// clientConfig collects everything NewClient needs before wiring the parts
// together.
type clientConfig struct {
	chainID          uint64
	pollInterval     time.Duration
	readerFactory    ReaderFactory
	submitterFactory SubmitterFactory
	reader           ChainReader
	submitter        ChainSubmitter
	submissions      SubmissionStore
	idempotency      IdempotencyStore
	idempotencyTTL   time.Duration
}

// ClientOption configures a Client at construction time.
type ClientOption func(*clientConfig)

// WithChainID targets a network other than the default.
func WithChainID(chainID uint64) ClientOption {
	return func(c *clientConfig) {
		if chainID != 0 {
			c.chainID = chainID
		}
	}
}

// WithClientPollInterval overrides the session's account poll interval.
func WithClientPollInterval(interval time.Duration) ClientOption {
	return func(c *clientConfig) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// WithReaderFactory overrides how chain readers are created, mostly for tests.
func WithReaderFactory(factory ReaderFactory) ClientOption {
	return func(c *clientConfig) {
		c.readerFactory = factory
	}
}

// WithSubmitterFactory overrides how chain submitters are created, mostly for
// tests.
func WithSubmitterFactory(factory SubmitterFactory) ClientOption {
	return func(c *clientConfig) {
		c.submitterFactory = factory
	}
}

// WithChainReader injects a ready reader, bypassing the factory.
func WithChainReader(reader ChainReader) ClientOption {
	return func(c *clientConfig) {
		c.reader = reader
	}
}

// WithChainSubmitter injects a ready submitter, bypassing the factory.
func WithChainSubmitter(submitter ChainSubmitter) ClientOption {
	return func(c *clientConfig) {
		c.submitter = submitter
	}
}

// WithSubmissionStore enables the submission journal. Without it, terminal
// pipeline outcomes are logged only.
func WithSubmissionStore(store SubmissionStore) ClientOption {
	return func(c *clientConfig) {
		c.submissions = store
	}
}

// WithIdempotencyStore replaces the process-local duplicate-submission guard,
// typically with the redis-backed one when several broker instances share a
// contract.
func WithIdempotencyStore(store IdempotencyStore) ClientOption {
	return func(c *clientConfig) {
		c.idempotency = store
	}
}

// WithIdempotencyTTL overrides how long a duplicate-submission guard is held.
func WithIdempotencyTTL(ttl time.Duration) ClientOption {
	return func(c *clientConfig) {
		if ttl > 0 {
			c.idempotencyTTL = ttl
		}
	}
}
