// Package cli реализует терминальный клиент поверх клиентского ядра:
// вход и регистрацию, профиль, онбординг, каталог комнат и состояние навигации.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/therapy-rooms/internal/app/core"
	"github.com/magabrotheeeer/therapy-rooms/internal/config"
	"github.com/magabrotheeeer/therapy-rooms/internal/lib/sl"
	"github.com/magabrotheeeer/therapy-rooms/internal/models"
	"github.com/magabrotheeeer/therapy-rooms/internal/session"
)

// Session — операции хранилища сессии, доступные командам.
type Session interface {
	SignUp(ctx context.Context, email, password, fullName string) error
	SignIn(ctx context.Context, email, password string) error
	SignOut(ctx context.Context)
	ResetPassword(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, newPassword string) error
	UpdateProfile(ctx context.Context, patch models.ProfilePatch) (*models.User, error)
	CompleteOnboarding(ctx context.Context) (*models.User, error)
	Snapshot() session.State
}

// Catalog — операции каталога комнат.
type Catalog interface {
	ListRooms(ctx context.Context, filter models.RoomFilter) ([]models.Room, error)
	ListRoomsPage(ctx context.Context, filter models.RoomFilter, pageSize int, pageToken string) (models.RoomPage, error)
	GetRoom(ctx context.Context, slug string) (*models.Room, error)
}

// Deps — ядро, с которым работают команды.
type Deps struct {
	Session Session
	Catalog Catalog
	Close   func() error
}

// Factory собирает ядро по пути к конфигу. Пустой путь означает CONFIG_PATH или окружение.
type Factory func(ctx context.Context, cfgPath string) (*Deps, error)

// Options — зависимости корневой команды.
type Options struct {
	Factory  Factory
	Prompter Prompter
	Out      io.Writer
	Err      io.Writer
}

type app struct {
	opts    Options
	cfgPath string
	format  string
	deps    *Deps
}

// NewRootCmd создает корневую команду therapy-cli.
func NewRootCmd(opts Options) *cobra.Command {
	if opts.Factory == nil {
		opts.Factory = CoreFactory
	}
	a := &app{opts: opts}

	cmd := &cobra.Command{
		Use:   "therapy-cli",
		Short: "Terminal client for therapy rooms",
		Long: `therapy-cli signs you in, manages your profile and onboarding,
and browses the therapy room catalog using the same client core as the app.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch a.format {
			case formatTable, formatJSON, formatYAML:
			default:
				return fmt.Errorf("unknown output format %q: use table, json or yaml", a.format)
			}
			deps, err := a.opts.Factory(cmd.Context(), a.cfgPath)
			if err != nil {
				return err
			}
			a.deps = deps
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.deps != nil && a.deps.Close != nil {
				return a.deps.Close()
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	if opts.Out != nil {
		cmd.SetOut(opts.Out)
	}
	if opts.Err != nil {
		cmd.SetErr(opts.Err)
	}

	cmd.PersistentFlags().StringVar(&a.cfgPath, "config", "", "config file (default $CONFIG_PATH)")
	cmd.PersistentFlags().StringVarP(&a.format, "output", "o", formatTable, "output format: table, json, yaml")

	cmd.AddCommand(
		a.newSignUpCmd(),
		a.newSignInCmd(),
		a.newSignOutCmd(),
		a.newResetPasswordCmd(),
		a.newUpdatePasswordCmd(),
		a.newWhoamiCmd(),
		a.newProfileCmd(),
		a.newOnboardingCmd(),
		a.newRoomsCmd(),
		a.newStatusCmd(),
	)
	return cmd
}

// Execute запускает CLI с настройками по умолчанию.
func Execute(ctx context.Context) error {
	return NewRootCmd(Options{}).ExecuteContext(ctx)
}

// CoreFactory собирает ядро без ретранслятора событий и восстанавливает сохранённую сессию.
func CoreFactory(ctx context.Context, cfgPath string) (*Deps, error) {
	cfg, err := config.LoadPath(cfgPath)
	if err != nil {
		return nil, err
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if cfg.LogLevel == "debug" {
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: sl.Level(cfg.LogLevel)}))
	}

	c, err := core.Build(ctx, cfg, log, core.WithoutRelay())
	if err != nil {
		return nil, err
	}
	c.Session.Initialize(ctx)
	return &Deps{Session: c.Session, Catalog: c.Catalog, Close: c.Close}, nil
}
