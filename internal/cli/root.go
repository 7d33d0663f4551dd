package cli

import (
	"fmt"
	"os"

	"formpay/internal/config"
	"formpay/internal/gateway"
	"formpay/internal/infrastructure/database"
	"formpay/internal/service"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// options 所有子命令共用的参数
type options struct {
	configPath string
	mode       string

	cfg *config.Config
	db  *gorm.DB
}

// NewRootCommand formpayctl 运维命令
func NewRootCommand() *cobra.Command {
	return newRootCommand(&options{})
}

// newRootCommand opts 中已有的 cfg / db 不会被覆盖
func newRootCommand(opts *options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "formpayctl",
		Short:         "formpay 运维工具：数据库迁移、网关凭证、webhook 与卸载",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.cfg != nil || cmd.Name() == "help" {
				return nil
			}
			opts.cfg = config.LoadConfig(opts.configPath)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config/config.yaml", "配置文件路径")

	rootCmd.AddCommand(migrateCmd(opts))
	rootCmd.AddCommand(validateCmd(opts))
	rootCmd.AddCommand(webhookCmd(opts))
	rootCmd.AddCommand(plansCmd(opts))
	rootCmd.AddCommand(uninstallCmd(opts))
	rootCmd.AddCommand(outboxCmd(opts))
	rootCmd.AddCommand(cardsCmd(opts))

	return rootCmd
}

// Execute 入口
func Execute(version string) error {
	rootCmd := NewRootCommand()
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func addModeFlag(cmd *cobra.Command, opts *options) {
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", config.ModeLive, "网关环境 (test|live)")
}

// database 懒连接，只有需要读写本地数据的命令才连接 MySQL
func (o *options) database() *gorm.DB {
	if o.db == nil {
		o.db = database.InitMySQL(&o.cfg.MySQL)
	}
	return o.db
}

// settings 只调用网关的命令不连接数据库，也不使用计划缓存
func (o *options) settings(db *gorm.DB) *service.SettingsService {
	return service.NewSettingsService(db, gateway.NewRegistry(&o.cfg.Gateway), nil, o.cfg)
}
