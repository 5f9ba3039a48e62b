package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/devlpr-X/qr-attendance/config"
	"github.com/devlpr-X/qr-attendance/internal/dto"
	"github.com/devlpr-X/qr-attendance/internal/repository"
	"github.com/devlpr-X/qr-attendance/internal/service"
	"github.com/devlpr-X/qr-attendance/pkg/database"
	"github.com/devlpr-X/qr-attendance/pkg/jwt"
	applogger "github.com/devlpr-X/qr-attendance/pkg/logger"
)

// cliEnv 子命令共用的配置与日志
type cliEnv struct {
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
}

func (e *cliEnv) load() error {
	cfg, err := config.Load(e.configPath)
	if err != nil {
		return err
	}
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	e.cfg = cfg
	e.logger = logger
	return nil
}

func (e *cliEnv) openDB() (*gorm.DB, *sql.DB, error) {
	db, err := database.NewDB(&e.cfg.Database, e.cfg.Log.Level, e.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("数据库连接失败: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return db, sqlDB, nil
}

func newRootCommand() *cobra.Command {
	env := &cliEnv{}
	cmd := &cobra.Command{
		Use:           "attendctl",
		Short:         "扫码签到服务运维工具",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&env.configPath, "config", "", "配置文件路径（缺省读取 ./config/config.yaml）")

	cmd.AddCommand(newMigrateCommand(env))
	cmd.AddCommand(newTokenCommand(env))
	cmd.AddCommand(newGenerateCommand(env))
	return cmd
}

// ────────────────────── migrate ──────────────────────

func newMigrateCommand(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "数据库迁移",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "执行全部未应用的迁移",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := env.load(); err != nil {
				return err
			}
			_, sqlDB, err := env.openDB()
			if err != nil {
				return err
			}
			defer sqlDB.Close()
			return database.RunMigrations(sqlDB, env.logger)
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "回滚最近的迁移",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := env.load(); err != nil {
				return err
			}
			_, sqlDB, err := env.openDB()
			if err != nil {
				return err
			}
			defer sqlDB.Close()
			return database.RollbackMigrations(sqlDB, steps, env.logger)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "回滚的版本数")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "显示当前迁移版本",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := env.load(); err != nil {
				return err
			}
			_, sqlDB, err := env.openDB()
			if err != nil {
				return err
			}
			defer sqlDB.Close()
			version, dirty, err := database.MigrationVersion(sqlDB)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%v\n", version, dirty)
			return nil
		},
	})
	return cmd
}

// ────────────────────── token ──────────────────────

// tokenOptions 签发教职工凭证的参数
type tokenOptions struct {
	userID    string
	role      string
	teacherID string
	ttl       time.Duration
}

func (o tokenOptions) validate() error {
	if _, err := uuid.Parse(o.userID); err != nil {
		return fmt.Errorf("--user 必须是 uuid: %w", err)
	}
	switch o.role {
	case jwt.RoleAdmin:
	case jwt.RoleTeacher:
		if _, err := uuid.Parse(o.teacherID); err != nil {
			return fmt.Errorf("teacher 角色必须通过 --teacher 指定教师 uuid")
		}
	default:
		return fmt.Errorf("--role 只能是 %s 或 %s", jwt.RoleAdmin, jwt.RoleTeacher)
	}
	return nil
}

func writeToken(w io.Writer, mgr *jwt.Manager, opts tokenOptions) error {
	if err := opts.validate(); err != nil {
		return err
	}
	teacherID := opts.teacherID
	if opts.role == jwt.RoleAdmin {
		teacherID = ""
	}
	token, err := mgr.GenerateAccessToken(opts.userID, opts.role, teacherID, opts.ttl)
	if err != nil {
		return fmt.Errorf("签发 token 失败: %w", err)
	}
	_, err = fmt.Fprintln(w, token)
	return err
}

func newTokenCommand(env *cliEnv) *cobra.Command {
	var opts tokenOptions
	cmd := &cobra.Command{
		Use:   "token",
		Short: "签发教职工 Access Token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := env.load(); err != nil {
				return err
			}
			return writeToken(cmd.OutOrStdout(), jwt.NewManager(&env.cfg.Auth), opts)
		},
	}
	cmd.Flags().StringVar(&opts.userID, "user", "", "用户 uuid")
	cmd.Flags().StringVar(&opts.role, "role", jwt.RoleTeacher, "角色：admin 或 teacher")
	cmd.Flags().StringVar(&opts.teacherID, "teacher", "", "teacher 角色对应的教师 uuid")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", 0, "有效期（缺省使用配置）")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// ────────────────────── generate ──────────────────────

func newGenerateCommand(env *cliEnv) *cobra.Command {
	var patternID, semesterID string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "按排课规律生成学期课次",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := env.load(); err != nil {
				return err
			}
			db, sqlDB, err := env.openDB()
			if err != nil {
				return err
			}
			defer sqlDB.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			svc := service.NewService(env.cfg, repository.NewRepository(db), nil, nil, env.logger)
			resp, err := svc.Session.GenerateSessions(ctx, patternID, &dto.GenerateSessionsRequest{SemesterID: semesterID}, dto.Caller{Role: jwt.RoleAdmin})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
	cmd.Flags().StringVar(&patternID, "pattern", "", "排课规律 ID")
	cmd.Flags().StringVar(&semesterID, "semester", "", "学期 ID（缺省为规律所属学期）")
	_ = cmd.MarkFlagRequired("pattern")
	return cmd
}
