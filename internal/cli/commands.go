package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"formpay/internal/infrastructure/database"
	"formpay/internal/model"
	"formpay/internal/repository"

	"github.com/spf13/cobra"
)

func migrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "创建或更新数据表",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := database.AutoMigrate(opts.database()); err != nil {
				return fmt.Errorf("迁移失败: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %d tables\n", len(database.Models()))
			return nil
		},
	}
}

func validateCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "校验某个环境的 api_key 与 merchant_id",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := opts.settings(nil).ValidateCredentials(cmd.Context(), opts.mode)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mode:      %s\n", result.Mode)
			fmt.Fprintf(out, "api_key:   %s\n", validLabel(result.APIKeyValid))
			fmt.Fprintf(out, "merchant:  %s\n", validLabel(result.MerchantValid))
			if result.Message != "" {
				fmt.Fprintf(out, "message:   %s\n", result.Message)
			}
			if !result.APIKeyValid || !result.MerchantValid {
				return fmt.Errorf("%s 环境凭证无效", result.Mode)
			}
			return nil
		},
	}
	addModeFlag(cmd, opts)
	return cmd
}

func validLabel(ok bool) string {
	if ok {
		return "valid"
	}
	return "invalid"
}

func webhookCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "管理网关 webhook 注册",
	}

	ensure := &cobra.Command{
		Use:   "ensure",
		Short: "已注册且有效时沿用，否则重新注册",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := opts.settings(nil).EnsureWebhook(cmd.Context(), opts.mode)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !reg.Created {
				fmt.Fprintf(out, "webhook %s is active (%s)\n", reg.WebhookID, reg.Mode)
				return nil
			}
			fmt.Fprintf(out, "webhook created (%s)\n", reg.Mode)
			fmt.Fprintf(out, "  FORMPAY_GATEWAY_%s_WEBHOOK_ID=%s\n", envMode(reg.Mode), reg.WebhookID)
			fmt.Fprintf(out, "  FORMPAY_GATEWAY_%s_WEBHOOK_SECRET=%s\n", envMode(reg.Mode), reg.Secret)
			return nil
		},
	}
	addModeFlag(ensure, opts)

	disable := &cobra.Command{
		Use:   "disable",
		Short: "禁用当前配置的 webhook",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.settings(nil).DisableWebhook(cmd.Context(), opts.mode); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "webhook disabled (%s)\n", opts.mode)
			return nil
		},
	}
	addModeFlag(disable, opts)

	cmd.AddCommand(ensure, disable)
	return cmd
}

func envMode(mode string) string {
	if mode == "test" {
		return "TEST"
	}
	return "LIVE"
}

func plansCmd(opts *options) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "列出网关上的有效订阅计划",
		RunE: func(cmd *cobra.Command, args []string) error {
			plans, err := opts.settings(nil).ListPlans(cmd.Context(), opts.mode)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(plans)
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PLAN_CODE\tNAME\tAMOUNT\tFREQUENCY")
			for _, p := range plans {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", p.PlanCode, p.PlanName, p.AmtTran.StringFixed(2), p.PlanFrequency)
			}
			return w.Flush()
		},
	}
	addModeFlag(cmd, opts)
	cmd.Flags().BoolVar(&asJSON, "json", false, "以 JSON 输出")
	return cmd
}

func uninstallCmd(opts *options) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "禁用 webhook 并删除全部交易记录",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("卸载会删除全部 transaction_info 记录，确认请加 --yes")
			}
			result, err := opts.settings(opts.database()).Uninstall(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d transactions, cleared %d entries\n",
				result.TransactionsDeleted, result.EntriesCleared)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "确认卸载")
	return cmd
}

func outboxCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "查看和重投支付事件",
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "按状态统计消息数",
		RunE: func(cmd *cobra.Command, args []string) error {
			counts, err := repository.NewOutboxRepository(opts.database()).CountByStatus(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, status := range []string{model.OutboxStatusPending, model.OutboxStatusSent, model.OutboxStatusFailed} {
				fmt.Fprintf(out, "%-8s %d\n", status, counts[status])
			}
			return nil
		},
	}

	requeue := &cobra.Command{
		Use:   "requeue",
		Short: "把 FAILED 消息重置为 PENDING",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := repository.NewOutboxRepository(opts.database()).RequeueFailed(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "requeued %d messages\n", n)
			return nil
		},
	}

	cmd.AddCommand(stats, requeue)
	return cmd
}

func cardsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cards",
		Short: "管理客户在网关 vault 中的卡",
	}

	list := &cobra.Command{
		Use:   "list <customer_id>",
		Short: "列出客户绑定的卡",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cards, err := opts.settings(nil).VaultCards(cmd.Context(), opts.mode, args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CARD_ID\tNUMBER\tTYPE\tEXP\tPRIMARY")
			for _, c := range cards {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", c.CardID, c.CardNumber, c.CardType, c.ExpDate, c.Primary)
			}
			return w.Flush()
		},
	}
	addModeFlag(list, opts)

	del := &cobra.Command{
		Use:   "delete <customer_id> <card_id>",
		Short: "从 vault 解绑卡并删除本地记录",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := opts.settings(opts.database()).RemoveVaultCard(cmd.Context(), opts.mode, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "card %s deleted (%d local)\n", args[1], removed)
			return nil
		},
	}
	addModeFlag(del, opts)

	cmd.AddCommand(list, del)
	return cmd
}
