package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"launchpad/internal/identity"
	"launchpad/internal/settlement"
)

func newFundCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fund",
		Short: "Credit a ledger account (investor value or pool inventory)",
		RunE:  runFund,
	}
	cmd.Flags().String("account", "", "account to credit")
	cmd.Flags().String("pool", "", "credit the custody account of this pool instead of --account")
	cmd.Flags().String("asset", settlement.NativeAsset, "asset reference, or native for contribution value")
	cmd.Flags().Uint64("amount", 0, "units to credit")
	return cmd
}

func runFund(cmd *cobra.Command, _ []string) error {
	account, _ := cmd.Flags().GetString("account")
	poolID, _ := cmd.Flags().GetString("pool")
	asset, _ := cmd.Flags().GetString("asset")
	amount, _ := cmd.Flags().GetUint64("amount")
	if amount == 0 {
		return fmt.Errorf("--amount must be greater than zero")
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		target, err := resolveAccount(ctx, a, account, poolID)
		if err != nil {
			return err
		}
		asset, err := normalizeAsset(asset)
		if err != nil {
			return err
		}

		if err := a.ledger.Fund(ctx, asset, target, amount); err != nil {
			return err
		}
		balance, err := a.ledger.Balance(ctx, asset, target)
		if err != nil {
			return err
		}
		a.logger.Info("account funded",
			zap.String("account", target),
			zap.String("asset", asset),
			zap.Uint64("amount", amount),
		)
		return printJSON(cmd, balanceView{Account: target, Asset: asset, Balance: balance})
	})
}

func newBalanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show a ledger balance",
		RunE:  runBalance,
	}
	cmd.Flags().String("account", "", "account to inspect")
	cmd.Flags().String("pool", "", "inspect the custody account of this pool instead of --account")
	cmd.Flags().String("asset", settlement.NativeAsset, "asset reference, or native for contribution value")
	return cmd
}

func runBalance(cmd *cobra.Command, _ []string) error {
	account, _ := cmd.Flags().GetString("account")
	poolID, _ := cmd.Flags().GetString("pool")
	asset, _ := cmd.Flags().GetString("asset")

	return withApp(cmd, func(ctx context.Context, a *app) error {
		target, err := resolveAccount(ctx, a, account, poolID)
		if err != nil {
			return err
		}
		asset, err := normalizeAsset(asset)
		if err != nil {
			return err
		}
		balance, err := a.ledger.Balance(ctx, asset, target)
		if err != nil {
			return err
		}
		return printJSON(cmd, balanceView{Account: target, Asset: asset, Balance: balance})
	})
}

type balanceView struct {
	Account string `json:"account"`
	Asset   string `json:"asset"`
	Balance uint64 `json:"balance"`
}

func resolveAccount(ctx context.Context, a *app, account, poolID string) (string, error) {
	switch {
	case poolID != "" && account != "":
		return "", fmt.Errorf("--account and --pool are mutually exclusive")
	case poolID != "":
		pool, err := a.service.GetPool(ctx, poolID)
		if err != nil {
			return "", err
		}
		return pool.Custody, nil
	case account != "":
		return identity.Normalize(account)
	default:
		return "", fmt.Errorf("either --account or --pool is required")
	}
}

func normalizeAsset(asset string) (string, error) {
	if asset == "" || asset == settlement.NativeAsset {
		return settlement.NativeAsset, nil
	}
	return identity.Normalize(asset)
}
