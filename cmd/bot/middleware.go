package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/mux"
	"github.com/wardenhq/warden/cmd/bot/monitoring"
	"github.com/wardenhq/warden/pkg/logging"
	"github.com/wardenhq/warden/pkg/request"
)

// commandController resolves a slash command to its processor.
type commandController func(a IApp, i *discordgo.InteractionCreate) (commandProcessor, error)

// commandProcessor executes a single interaction.
type commandProcessor func(a IApp, i *discordgo.InteractionCreate) error

type Controller func(w http.ResponseWriter, r *http.Request)

func middlewareHttp(handler Controller, a IApp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC()
		cw := request.NewClientWriter(w)

		// Recover from any panics that occur in the handler.
		defer func() {
			if rec := recover(); rec != nil {
				a.Log().Error("Panic in handler",
					slog.String(logging.KeyError, fmt.Sprint(rec)),
					slog.String("stack", string(debug.Stack())),
				)
				cw.WriteHeader(http.StatusInternalServerError)
				if err := json.NewEncoder(cw).Encode(request.NewMessage(request.ErrInternalServer.Error())); err != nil {
					a.Log().Error("Error encoding response", slog.String(logging.KeyError, err.Error()))
				}
			}
		}()

		var path string
		route := mux.CurrentRoute(r)
		if route != nil { // The route may be nil if the request is not routed.
			var err error
			path, err = route.GetPathTemplate()
			if err != nil {
				// An error here is only returned if the route does not define a path.
				a.Log().Error("Error getting path template", slog.String(logging.KeyError, err.Error()))
				path = r.URL.Path // If the route does not define a path, use the URL path.
			}
		} else {
			path = r.URL.Path // If the route is nil, use the URL path.
		}

		defer func() {
			// Run the deferred function after the request has been handled, as the status code will not be available until then.
			monitoring.HttpTotalRequests.WithLabelValues(path, r.Method, fmt.Sprintf("%d", cw.StatusCode())).Inc()
			monitoring.HttpRequestDuration.WithLabelValues(path, r.Method, fmt.Sprintf("%d", cw.StatusCode())).Observe(time.Since(now).Seconds())
		}()

		handler(cw, r)
	}
}

// interactionHandler routes interaction events to the registered
// controllers: slash commands by name, buttons and modals by custom ID.
func interactionHandler(a IApp, controllers map[string]commandController, buttons, modals map[string]commandProcessor) func(s *discordgo.Session, i *discordgo.InteractionCreate) {
	return func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		switch i.Type {
		case discordgo.InteractionApplicationCommand:
			handleSlashInteraction(a, i, controllers)
		case discordgo.InteractionMessageComponent:
			handleKeyedInteraction(a, i, i.MessageComponentData().CustomID, buttons)
		case discordgo.InteractionModalSubmit:
			handleKeyedInteraction(a, i, i.ModalSubmitData().CustomID, modals)
		default:
			a.Log().Debug("Ignoring interaction", slog.String("type", fmt.Sprintf("%d", i.Type)))
		}
	}
}

func handleSlashInteraction(a IApp, i *discordgo.InteractionCreate, controllers map[string]commandController) {
	name := i.ApplicationCommandData().Name
	a.Log().Debug("Handling interaction " + name)

	controller, ok := controllers[name]
	if !ok {
		a.Log().Error("No controller found for command", slog.String("command", name))
		if err := respondEphemeralError(a, i); err != nil {
			a.Log().Error("Error responding to interaction", slog.String(logging.KeyError, err.Error()))
		}
		return
	}

	processor, err := controller(a, i)
	if err != nil {
		a.Log().Error(fmt.Sprintf("Error getting processor for command %s", name),
			slog.String(logging.KeyError, err.Error()))

		if err := respondEphemeralError(a, i); err != nil {
			a.Log().Error("Error responding to interaction", slog.String(logging.KeyError, err.Error()))
		}
		return
	} else if processor == nil {
		// The controller already responded (permission refusal).
		return
	}

	if err := processor(a, i); err != nil {
		a.Log().Error(fmt.Sprintf("Error processing command %s", name),
			slog.String(logging.KeyError, err.Error()))

		if err := respondEphemeralError(a, i); err != nil {
			a.Log().Error("Error responding to interaction", slog.String(logging.KeyError, err.Error()))
		}
	}
}

func handleKeyedInteraction(a IApp, i *discordgo.InteractionCreate, customID string, processors map[string]commandProcessor) {
	a.Log().Debug("Handling interaction " + customID)

	processor, ok := processors[customID]
	if !ok {
		a.Log().Error("No processor found for interaction", slog.String("custom_id", customID))
		if err := respondEphemeralError(a, i); err != nil {
			a.Log().Error("Error responding to interaction", slog.String(logging.KeyError, err.Error()))
		}
		return
	}

	if err := processor(a, i); err != nil {
		a.Log().Error(fmt.Sprintf("Error processing interaction %s", customID),
			slog.String(logging.KeyError, err.Error()))

		if err := respondEphemeralError(a, i); err != nil {
			a.Log().Error("Error responding to interaction", slog.String(logging.KeyError, err.Error()))
		}
	}
}
