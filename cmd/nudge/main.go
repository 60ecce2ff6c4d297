package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/chris/nudge/config"
	"github.com/chris/nudge/internal/discord"
	"github.com/chris/nudge/internal/host"
	"github.com/chris/nudge/internal/llm"
	"github.com/chris/nudge/internal/proactive"
	"github.com/chris/nudge/internal/remind"
	"github.com/chris/nudge/internal/scheduler"
	"github.com/chris/nudge/internal/service"
	"github.com/chris/nudge/internal/state"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "install":
			fatalOnErr(service.Install())
			return
		case "uninstall":
			fatalOnErr(service.Uninstall())
			return
		case "start":
			fatalOnErr(service.Start())
			return
		case "stop":
			fatalOnErr(service.Stop())
			return
		case "restart":
			fatalOnErr(service.Restart())
			return
		case "status":
			fatalOnErr(service.Status())
			return
		case "logs":
			fatalOnErr(service.Logs())
			return
		case "purge":
			purge(config.Load())
			return
		case "run":
			// fall through to the bot below
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
			fmt.Fprintln(os.Stderr, "usage: nudge [run|install|uninstall|start|stop|restart|status|logs|purge]")
			os.Exit(2)
		}
	}

	runBot(config.Load())
}

func runBot(cfg *config.Config) {
	if cfg.DiscordToken == "" {
		log.Fatal("DISCORD_BOT_TOKEN is not set")
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("failed to create data dir: %v", err)
	}

	states, reminders, settings := openStores(cfg)

	client, err := llm.FromConfig(cfg)
	if err != nil {
		log.Fatalf("failed to create LLM client: %v", err)
	}
	providers := llm.NewRegistry()
	providers.Register(cfg.LLMProvider, client)

	bot, err := discord.NewBot(cfg.DiscordToken, states, reminders, settings)
	if err != nil {
		log.Fatalf("failed to start Discord bot: %v", err)
	}
	defer bot.Close()

	assembler := &proactive.Assembler{
		Providers:        providers,
		Convs:            host.NullConversations{},
		Personas:         host.StaticPersonas{},
		Sender:           bot,
		States:           states,
		Settings:         settings,
		MaxContextTokens: cfg.MaxContextTokens,
	}

	sched := scheduler.New(states, reminders, settings, assembler, bot)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	log.Println("bot is running. Press Ctrl+C to exit.")
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down.")

	// Pause teardown: keep all state on disk for the next start.
	if err := states.Save(); err != nil {
		log.Printf("saving state: %v", err)
	}
	if err := reminders.Save(); err != nil {
		log.Printf("saving reminders: %v", err)
	}
}

// purge removes all persisted plugin data and resets settings.
func purge(cfg *config.Config) {
	states, reminders, settings := openStores(cfg)
	if err := states.Purge(); err != nil {
		log.Printf("purging state: %v", err)
	}
	if err := reminders.Purge(); err != nil {
		log.Printf("purging reminders: %v", err)
	}
	if err := settings.Reset(); err != nil {
		log.Printf("resetting settings: %v", err)
	}
	log.Println("all plugin data purged")
}

func openStores(cfg *config.Config) (*state.Store, *remind.Store, *config.SettingsStore) {
	return state.Open(filepath.Join(cfg.DataDir, "state.json")),
		remind.Open(filepath.Join(cfg.DataDir, "reminders.json")),
		config.OpenSettings(filepath.Join(cfg.DataDir, "settings.json"))
}

func fatalOnErr(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
