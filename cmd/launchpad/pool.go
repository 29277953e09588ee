package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"launchpad/internal/config"
	"launchpad/internal/launchpad"
	"launchpad/internal/report"
)

func newInitPoolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init-pool",
		Short: "Create a pool",
		RunE:  runInitPool,
	}
	cmd.Flags().String("id", "", "pool id")
	cmd.Flags().String("authority", "", "pool authority account")
	cmd.Flags().String("asset", "", "asset reference (token address or mint)")
	cmd.Flags().Uint64("unit-price", 0, "asset units per unit of value")
	cmd.Flags().Uint64("soft-cap", 0, "soft cap in value units")
	cmd.Flags().Uint64("hard-cap", 0, "hard cap in value units")
	cmd.Flags().String("start", "", "contribution window start (unix seconds or RFC3339)")
	cmd.Flags().String("end", "", "contribution window end, inclusive (unix seconds or RFC3339)")
	return cmd
}

func runInitPool(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	startRaw, _ := flags.GetString("start")
	endRaw, _ := flags.GetString("end")
	start, err := config.ParseTimestamp(startRaw)
	if err != nil {
		return fmt.Errorf("parse start: %w", err)
	}
	end, err := config.ParseTimestamp(endRaw)
	if err != nil {
		return fmt.Errorf("parse end: %w", err)
	}

	params := launchpad.PoolParams{StartTime: start, EndTime: end}
	params.ID, _ = flags.GetString("id")
	params.Authority, _ = flags.GetString("authority")
	params.AssetReference, _ = flags.GetString("asset")
	params.UnitPrice, _ = flags.GetUint64("unit-price")
	params.SoftCap, _ = flags.GetUint64("soft-cap")
	params.HardCap, _ = flags.GetUint64("hard-cap")

	return withApp(cmd, func(ctx context.Context, a *app) error {
		pool, err := a.service.InitializePool(ctx, params)
		if err != nil {
			return err
		}
		return printJSON(cmd, pool)
	})
}

func newInvestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invest",
		Short: "Contribute value to a pool",
		RunE:  runInvest,
	}
	cmd.Flags().String("pool", "", "pool id")
	cmd.Flags().String("investor", "", "investor account")
	cmd.Flags().Uint64("amount", 0, "value units to contribute")
	cmd.Flags().String("vesting-id", "", "vesting schedule id (generated when empty)")
	return cmd
}

func runInvest(cmd *cobra.Command, _ []string) error {
	var req launchpad.InvestRequest
	req.PoolID, _ = cmd.Flags().GetString("pool")
	req.Investor, _ = cmd.Flags().GetString("investor")
	req.Amount, _ = cmd.Flags().GetUint64("amount")
	req.VestingID, _ = cmd.Flags().GetString("vesting-id")

	return withApp(cmd, func(ctx context.Context, a *app) error {
		schedule, err := a.service.Invest(ctx, req)
		if err != nil {
			return err
		}
		return printJSON(cmd, schedule)
	})
}

func newClaimCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Claim unlocked tokens from a vesting schedule",
		RunE:  runClaim,
	}
	cmd.Flags().String("vesting-id", "", "vesting schedule id")
	cmd.Flags().String("to", "", "destination account (defaults to the investor)")
	return cmd
}

func runClaim(cmd *cobra.Command, _ []string) error {
	var req launchpad.ClaimRequest
	req.VestingID, _ = cmd.Flags().GetString("vesting-id")
	req.Destination, _ = cmd.Flags().GetString("to")

	return withApp(cmd, func(ctx context.Context, a *app) error {
		result, err := a.service.Claim(ctx, req)
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	})
}

func newVestingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vesting",
		Short: "Show a vesting schedule, or list a pool's schedules",
		RunE:  runVesting,
	}
	cmd.Flags().String("id", "", "vesting schedule id")
	cmd.Flags().String("pool", "", "pool id to list schedules of")
	cmd.Flags().String("investor", "", "only list this investor's schedules")
	return cmd
}

func runVesting(cmd *cobra.Command, _ []string) error {
	id, _ := cmd.Flags().GetString("id")
	poolID, _ := cmd.Flags().GetString("pool")
	investor, _ := cmd.Flags().GetString("investor")
	if id == "" && poolID == "" {
		return fmt.Errorf("either --id or --pool is required")
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		if id != "" {
			status, err := a.service.VestingStatus(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(cmd, status)
		}
		schedules, err := a.service.ListVesting(ctx, poolID, investor)
		if err != nil {
			return err
		}
		return printJSON(cmd, schedules)
	})
}

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize a pool and its schedules",
		RunE:  runReport,
	}
	cmd.Flags().String("pool", "", "pool id")
	cmd.Flags().String("at", "", "evaluate at this time (unix seconds or RFC3339), defaults to now")
	return cmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	poolID, _ := cmd.Flags().GetString("pool")
	atRaw, _ := cmd.Flags().GetString("at")
	if poolID == "" {
		return fmt.Errorf("--pool is required")
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		var at int64
		var err error
		if atRaw != "" {
			at, err = config.ParseTimestamp(atRaw)
		} else {
			at, err = a.service.Now(ctx)
		}
		if err != nil {
			return err
		}

		rep, err := report.Build(ctx, a.backend, poolID, at)
		if err != nil {
			return err
		}
		if !rep.Consistent {
			a.logger.Warn("pool totals disagree with its schedules", zap.String("pool", poolID))
		}
		return printJSON(cmd, rep)
	})
}

// withApp opens the configured stack for the duration of fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := fn(ctx, a); err != nil {
		if launchpad.IsFatal(err) {
			a.logger.Error("inconsistent state, manual reconciliation required", zap.Error(err))
		}
		return err
	}
	return nil
}
