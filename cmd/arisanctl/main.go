// arisanctl drives a rotating-savings contract from the command line: wallet
// session control, group creation, due payments, winner draws and payout
// release, plus read-only views of contract state.
package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arisan-labs/arisankit"
	redisstore "github.com/arisan-labs/arisankit/persistence/redis"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "arisanctl",
		Short:         "Manage rotating-savings groups on chain",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.arisanctl.yaml)")
	cmd.PersistentFlags().String("wallet", "", "wallet address in the local account store")
	cmd.PersistentFlags().String("contract", "", "arisan contract address")
	cmd.PersistentFlags().Uint64("chain-id", arisankit.DefaultChainID, "network chain id")
	cmd.PersistentFlags().String("redis", "", "redis address for the submission journal (optional)")
	cmd.PersistentFlags().Bool("yes", false, "skip confirmation prompts")

	for _, flag := range []string{"wallet", "contract", "chain-id", "redis", "yes"} {
		_ = viper.BindPFlag(flag, cmd.PersistentFlags().Lookup(flag))
	}
	cobra.OnInitialize(initConfig)

	cmd.AddCommand(
		connectCmd(),
		statusCmd(),
		groupsCmd(),
		groupCmd(),
		createCmd(),
		payCmd(),
		drawCmd(),
		releaseCmd(),
		historyCmd(),
	)
	return cmd
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigName(".arisanctl")
			viper.SetConfigType("yaml")
		}
	}
	viper.SetEnvPrefix("ARISANCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

// newBroker wires a connected broker from config. Every command goes through
// here so flag, env and file configuration behave identically.
func newBroker(ctx context.Context) (*arisankit.Client, error) {
	walletAddr := viper.GetString("wallet")
	if walletAddr == "" {
		return nil, fmt.Errorf("no wallet configured; set --wallet or ARISANCTL_WALLET")
	}
	contractHex := viper.GetString("contract")
	if !common.IsHexAddress(contractHex) {
		return nil, fmt.Errorf("invalid contract address %q; set --contract", contractHex)
	}

	wallet, err := arisankit.UnlockKeystoreWallet(walletAddr)
	if err != nil {
		return nil, err
	}

	opts := []arisankit.ClientOption{
		arisankit.WithChainID(viper.GetUint64("chain-id")),
	}
	if redisAddr := viper.GetString("redis"); redisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: redisAddr})
		opts = append(opts,
			arisankit.WithSubmissionStore(redisstore.NewSubmissionStore(rdb)),
			arisankit.WithIdempotencyStore(redisstore.NewIdempotencyStore(rdb)),
		)
	}

	broker, err := arisankit.NewClient(wallet, common.HexToAddress(contractHex), opts...)
	if err != nil {
		return nil, err
	}
	if !broker.CheckConnection(ctx) {
		res := broker.Connect(ctx)
		if !res.Success {
			return nil, fmt.Errorf("couldn't connect wallet: %w", res.Err)
		}
	}
	return broker, nil
}

func confirm(action string) error {
	if viper.GetBool("yes") {
		return nil
	}
	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("%s, continue", action),
		IsConfirm: true,
	}
	if _, err := prompt.Run(); err != nil {
		return fmt.Errorf("aborted")
	}
	return nil
}

func printResult(res *arisankit.PipelineResult) {
	if res == nil {
		return
	}
	if res.Succeeded() {
		color.Green("OK  stage=%s status=%s", res.Stage, res.Status)
	} else {
		color.Red("FAILED  stage=%s", res.Stage)
	}
	if res.TxHash != "" {
		fmt.Printf("tx: %s\n", res.TxHash)
	}
}

func connectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Establish a wallet session and report the active account",
		RunE: func(cmd *cobra.Command, args []string) error {
			broker, err := newBroker(cmd.Context())
			if err != nil {
				return err
			}
			defer broker.Disconnect(cmd.Context())

			// newBroker already connected or failed; report what we got
			res := broker.Connect(cmd.Context())
			if !res.Success {
				return res.Err
			}
			color.Green("connected")
			fmt.Printf("wallet: %s\n", res.PublicKey)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the wallet session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			broker, err := newBroker(cmd.Context())
			if err != nil {
				return err
			}
			defer broker.Disconnect(cmd.Context())

			state := broker.State()
			if state.IsConnected {
				color.Green("connected")
				fmt.Printf("wallet:   %s\n", state.PublicKey)
			} else {
				color.Yellow("not connected")
			}
			fmt.Printf("chain id: %d\n", viper.GetUint64("chain-id"))
			return nil
		},
	}
}

func groupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "List all groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			broker, err := newBroker(cmd.Context())
			if err != nil {
				return err
			}
			defer broker.Disconnect(cmd.Context())

			groups := broker.Reads().GetAllGroups(cmd.Context())
			if len(groups) == 0 {
				color.Yellow("no groups")
				return nil
			}
			for _, g := range groups {
				active := color.GreenString("active")
				if !g.IsActive {
					active = color.RedString("closed")
				}
				fmt.Printf("#%-4d %s  owner=%s  members=%d  rounds=%d  due=%s  pool=%s\n",
					g.ID, active, g.Owner.Hex(), len(g.Members), g.RoundCount, g.DueAmount, g.TotalPool)
			}
			return nil
		},
	}
}

func groupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "group <id>",
		Short: "Show one group in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUint32(args[0])
			if err != nil {
				return err
			}
			broker, err := newBroker(cmd.Context())
			if err != nil {
				return err
			}
			defer broker.Disconnect(cmd.Context())

			reads := broker.Reads()
			group := reads.GetGroup(cmd.Context(), id)
			if group == nil {
				return fmt.Errorf("group %d not found", id)
			}

			fmt.Printf("group:     #%d\n", group.ID)
			fmt.Printf("owner:     %s\n", group.Owner.Hex())
			fmt.Printf("rounds:    %d\n", group.RoundCount)
			fmt.Printf("due:       %s\n", group.DueAmount)
			fmt.Printf("pool:      %s\n", group.TotalPool)
			fmt.Printf("round now: %d\n", reads.GetCurrentRound(cmd.Context(), id))
			fmt.Println("members:")
			for _, m := range group.Members {
				fmt.Printf("  %s\n", m.Hex())
			}
			for round := uint32(1); round <= group.RoundCount; round++ {
				if winner := reads.GetWinner(cmd.Context(), id, round); winner != nil {
					released := color.YellowString("held")
					if winner.IsReleased {
						released = color.GreenString("released")
					}
					fmt.Printf("round %d winner: %s (%s)\n", round, winner.Winner.Hex(), released)
				}
			}
			return nil
		},
	}
}

func createCmd() *cobra.Command {
	var members []string
	var rounds uint32
	var due string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a group owned by the connected wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			memberAddrs := make([]common.Address, 0, len(members))
			for _, m := range members {
				if !common.IsHexAddress(m) {
					return fmt.Errorf("invalid member address %q", m)
				}
				memberAddrs = append(memberAddrs, common.HexToAddress(m))
			}
			amount, err := parseAmount(due)
			if err != nil {
				return err
			}
			if err := confirm(fmt.Sprintf("create group with %d members, %d rounds, due %s", len(memberAddrs), rounds, amount)); err != nil {
				return err
			}

			broker, err := newBroker(cmd.Context())
			if err != nil {
				return err
			}
			defer broker.Disconnect(cmd.Context())

			res, err := broker.CreateGroup(cmd.Context(), memberAddrs, rounds, amount)
			printResult(res)
			return err
		},
	}
	cmd.Flags().StringSliceVar(&members, "members", nil, "member addresses")
	cmd.Flags().Uint32Var(&rounds, "rounds", 0, "number of rounds")
	cmd.Flags().StringVar(&due, "due", "", "due amount per round, in wei")
	_ = cmd.MarkFlagRequired("members")
	_ = cmd.MarkFlagRequired("rounds")
	_ = cmd.MarkFlagRequired("due")
	return cmd
}

func payCmd() *cobra.Command {
	var amount string

	cmd := &cobra.Command{
		Use:   "pay <group> <round>",
		Short: "Pay the connected wallet's due for a round",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			groupID, round, err := parseGroupRound(args)
			if err != nil {
				return err
			}
			broker, err := newBroker(cmd.Context())
			if err != nil {
				return err
			}
			defer broker.Disconnect(cmd.Context())

			due, err := parseAmount(amount)
			if err != nil {
				if amount != "" {
					return err
				}
				group := broker.Reads().GetGroup(cmd.Context(), groupID)
				if group == nil {
					return fmt.Errorf("group %d not found", groupID)
				}
				due = group.DueAmount
			}
			if err := confirm(fmt.Sprintf("pay %s for group %d round %d", due, groupID, round)); err != nil {
				return err
			}

			res, err := broker.PayDue(cmd.Context(), groupID, round, due)
			printResult(res)
			return err
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "amount in wei (default: the group's due amount)")
	return cmd
}

func drawCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "draw <group> <round>",
		Short: "Draw the round's winner (owner only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			groupID, round, err := parseGroupRound(args)
			if err != nil {
				return err
			}
			if err := confirm(fmt.Sprintf("draw winner for group %d round %d", groupID, round)); err != nil {
				return err
			}
			broker, err := newBroker(cmd.Context())
			if err != nil {
				return err
			}
			defer broker.Disconnect(cmd.Context())

			res, err := broker.DrawWinner(cmd.Context(), groupID, round)
			printResult(res)
			return err
		},
	}
}

func releaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "release <group> <round>",
		Short: "Release the round's pool to its winner (owner only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			groupID, round, err := parseGroupRound(args)
			if err != nil {
				return err
			}
			if err := confirm(fmt.Sprintf("release pool of group %d round %d to its winner", groupID, round)); err != nil {
				return err
			}
			broker, err := newBroker(cmd.Context())
			if err != nil {
				return err
			}
			defer broker.Disconnect(cmd.Context())

			res, err := broker.ReleaseToWinner(cmd.Context(), groupID, round)
			printResult(res)
			return err
		},
	}
}

func historyCmd() *cobra.Command {
	var limit int64

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the wallet's journaled submissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			broker, err := newBroker(cmd.Context())
			if err != nil {
				return err
			}
			defer broker.Disconnect(cmd.Context())

			recs, err := broker.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				color.Yellow("no journaled submissions (is --redis configured?)")
				return nil
			}
			for _, rec := range recs {
				stage := color.GreenString(string(rec.Stage))
				if rec.Stage == arisankit.StageFailed {
					stage = color.RedString(string(rec.Stage))
				}
				fmt.Printf("%s  %-18s group=%d round=%d %s %s\n",
					rec.CreatedAt.Format(time.RFC3339), rec.Operation, rec.GroupID, rec.Round, stage, rec.TxHash)
				if rec.Error != "" {
					fmt.Printf("    %s\n", rec.Error)
				}
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&limit, "limit", 20, "max records to show (0 = all)")
	return cmd
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return uint32(v), nil
}

func parseGroupRound(args []string) (uint32, uint32, error) {
	groupID, err := parseUint32(args[0])
	if err != nil {
		return 0, 0, err
	}
	round, err := parseUint32(args[1])
	if err != nil {
		return 0, 0, err
	}
	return groupID, round, nil
}

func parseAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok || amount.Sign() <= 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return amount, nil
}
