package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wardenhq/warden/cmd/bot/config"
	"github.com/wardenhq/warden/cmd/bot/monitoring"
	"github.com/wardenhq/warden/pkg/dataaccess"
	"github.com/wardenhq/warden/pkg/logging"
	"github.com/wardenhq/warden/pkg/request"
	"github.com/wardenhq/warden/pkg/ticketing"
)

const (
	// PathMetrics is the path for metrics.
	PathMetrics = "/metrics"

	// PathHealth is the path for the health check.
	PathHealth = "/health"
)

// IApp is the interface for the application.
type IApp interface {
	// Session returns the discord session.
	Session() *discordgo.Session

	// Log returns the application logger.
	Log() *slog.Logger

	// Manager returns the ticket lifecycle manager.
	Manager() *ticketing.Manager

	// SettingsDal returns the guild settings store.
	SettingsDal() dataaccess.SettingsDal
}

type App struct {
	// is the logger.
	*slog.Logger

	// r is the router for the application.
	r *mux.Router

	// svr is the server for the application.
	svr *http.Server

	// s is the discord session.
	s *discordgo.Session

	// settingsDal is the guild settings store.
	settingsDal dataaccess.SettingsDal

	// ticketDal is the ticket record store.
	ticketDal dataaccess.TicketDal

	// manager is the ticket lifecycle manager.
	manager *ticketing.Manager
}

// NewApp creates a new instance of App.
func NewApp(l *slog.Logger, r *mux.Router) *App {
	return &App{
		Logger: l,
		r:      r,
	}
}

func (a *App) Run() error {
	// Register bot.
	if err := a.RegisterBot(); err != nil {
		return fmt.Errorf("error registering bot: %w", err)
	}

	a.s.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		a.Info(fmt.Sprintf("Logged in as %s#%s", r.User.Username, r.User.Discriminator))
	})

	if err := a.RegisterDiscordHandlers(); err != nil {
		return fmt.Errorf("error registering discord handlers: %w", err)
	}

	// Open websocket.
	if err := a.s.Open(); err != nil {
		return fmt.Errorf("error opening connection to Discord: %w", err)
	}

	// Register slash commands.
	if err := a.registerSlashCommands(); err != nil {
		return fmt.Errorf("error registering slash commands: %w", err)
	}

	a.Info("Bot is now running.")

	a.generateServer()
	a.setupRoutes()
	a.runServer()

	// Register listener for shutdown signal.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	// Process shutdown signal.
	for sig := range c {
		a.Info("Received shutdown signal", slog.String("signal", sig.String()))
		if err := a.ShutdownHook(); err != nil {
			a.Error("Error shutting down application", slog.String(logging.KeyError, err.Error()))
		}
		os.Exit(0)
	}
	return nil
}

func (a *App) ShutdownHook() error {
	// Reset the total number of guilds to 0.
	monitoring.TotalDiscordGuilds.Set(0)

	// Unregister slash commands.
	if err := a.unregisterSlashCommands(); err != nil {
		return fmt.Errorf("error unregistering slash commands: %w", err)
	}

	// Close the connection to Discord.
	if err := a.s.Close(); err != nil {
		return fmt.Errorf("error closing connection to Discord: %w", err)
	}
	return nil
}

func (a *App) RegisterBot() error {
	// Default the number of guilds to 0.
	monitoring.TotalDiscordGuilds.Set(0)

	dg, err := discordgo.New("Bot " + config.BotToken)
	if err != nil {
		return fmt.Errorf("error creating Discord session: %w", err)
	}

	dg.Identify.Intents = discordgo.IntentsAllWithoutPrivileged

	a.s = dg

	// The stores and the manager hang off the session, so they are built
	// once the session exists.
	a.settingsDal = dataaccess.NewSettingsDal()
	a.ticketDal = dataaccess.NewTicketDal()
	a.manager = ticketing.NewManager(
		a.Logger,
		a.settingsDal,
		a.ticketDal,
		ticketing.NewDiscordChannelProvider(a.s),
		ticketing.NewDiscordLogSink(a.Logger, a.s, a.settingsDal),
	)
	return nil
}

func (a *App) runServer() {
	go func() {
		a.Info("Starting monitoring server")
		if err := a.svr.ListenAndServe(); err != nil {
			a.Error("Error starting monitoring server", slog.String(logging.KeyError, err.Error()))
			a.Warn("Monitoring server will not be available")
		}
	}()
}

func (a *App) setupRoutes() {
	// PathMetrics is the path for metrics.
	a.r.HandleFunc(PathMetrics, promhttp.Handler().ServeHTTP).Methods(http.MethodGet)

	// PathHealth is the path for health check.
	a.r.HandleFunc(PathHealth, middlewareHttp(a.healthCheck(), a)).Methods(http.MethodGet)

	// NotFoundHandler is the handler for 404.
	a.r.NotFoundHandler = request.NotFoundHandler(a.Logger)

	// MethodNotAllowedHandler is the handler for 405.
	a.r.MethodNotAllowedHandler = request.MethodNotAllowedHandler(a.Logger)
}

func (a *App) generateServer() {
	a.svr = &http.Server{
		Addr:    ":" + config.MonitoringPort,
		Handler: a.r,
	}
}

func (a *App) GetJoinedGuilds() ([]*discordgo.UserGuild, error) {
	guilds, err := a.s.UserGuilds(0, "", "")
	if err != nil {
		return nil, fmt.Errorf("error getting guilds: %w", err)
	}
	return guilds, nil
}

func (a *App) RegisterDiscordHandlers() error {
	// Bot joined guild.
	a.s.AddHandler(guildJoinedHandler(a))

	// Bot left guild.
	a.s.AddHandler(guildLeaveHandler(a))

	// Count every gateway event by type.
	a.s.AddHandler(func(_ *discordgo.Session, e *discordgo.Event) {
		monitoring.TotalDiscordEvents.WithLabelValues(e.Type).Inc()
	})

	// Interaction create handler.
	a.s.AddHandler(interactionHandler(a,
		// Slash controllers
		map[string]commandController{
			setupCmdName:  setupCmdController,
			ticketCmdName: ticketCmdController,
		},
		// Button controllers
		map[string]commandProcessor{
			openTicketButtonID:   openTicketRequestedHandler,
			claimTicketButtonID:  controlButtonHandler(ticketing.ActionClaim),
			closeTicketButtonID:  controlButtonHandler(ticketing.ActionClose),
			deleteTicketButtonID: controlButtonHandler(ticketing.ActionDelete),
		},
		// Modal controllers
		map[string]commandProcessor{
			openTicketModalID: openTicketSubmittedHandler,
		}))
	return nil
}

func (a *App) registerSlashCommands() error {
	// Get all guilds the bot is in.
	guilds, err := a.GetJoinedGuilds()
	if err != nil {
		return fmt.Errorf("error getting guilds: %w", err)
	}

	// Register slash commands for each guild.
	for _, g := range guilds {
		// Register the setup command.
		if _, err := a.Session().ApplicationCommandCreate(config.ApplicationId, g.ID, setupCmd); err != nil {
			return fmt.Errorf("error creating setup command for guild %s: %w", g.ID, err)
		}

		// Register the ticket command.
		if _, err := a.Session().ApplicationCommandCreate(config.ApplicationId, g.ID, ticketCmd); err != nil {
			return fmt.Errorf("error creating ticket command for guild %s: %w", g.ID, err)
		}
	}
	return nil
}

func (a *App) unregisterSlashCommands() error {
	// Get all guilds the bot is in.
	guilds, err := a.GetJoinedGuilds()
	if err != nil {
		return fmt.Errorf("error getting guilds: %w", err)
	}

	// Delete slash commands for each guild.
	for _, guild := range guilds {
		cmds, err := a.s.ApplicationCommands(config.ApplicationId, guild.ID)
		if err != nil {
			return fmt.Errorf("error listing commands for guild %s: %w", guild.ID, err)
		}

		for _, cmd := range cmds {
			if cmd.Name != setupCmdName && cmd.Name != ticketCmdName {
				continue
			}
			if err := a.s.ApplicationCommandDelete(config.ApplicationId, guild.ID, cmd.ID); err != nil {
				return fmt.Errorf("error deleting command %s for guild %s: %w", cmd.Name, guild.ID, err)
			}
		}
	}
	return nil
}

func (a *App) Session() *discordgo.Session {
	return a.s
}

func (a *App) Log() *slog.Logger {
	return a.Logger
}

func (a *App) Manager() *ticketing.Manager {
	return a.manager
}

func (a *App) SettingsDal() dataaccess.SettingsDal {
	return a.settingsDal
}
