// playwith emulates a Nintendo Switch controller over Bluetooth.
//
// It configures a local adapter to look like a wireless gamepad, advertises
// the HID service record, waits for a console to connect on the HID control
// and interrupt channels, and then answers the console's subcommand
// handshake.
//
// Usage:
//
//	playwith [-a hci0] [-c PRO_CONTROLLER] [-v N] [-config path]
//
// With a single Bluetooth adapter present, -a can be omitted. Open the
// console's "Change Grip/Order" screen to let it discover the controller.
// Press Ctrl+C to stop; the adapter is restored to non-discoverable and the
// service record unregistered on the way out.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zhxie/playwith/internal/bluez"
	"github.com/zhxie/playwith/internal/config"
	"github.com/zhxie/playwith/internal/controller"
	"github.com/zhxie/playwith/internal/pairing"
)

func main() {
	var (
		adapterFlag    string
		controllerFlag string
		verbose        int
		configPath     string
	)
	flag.StringVar(&adapterFlag, "adapter", "", "Bluetooth adapter name (e.g. hci0)")
	flag.StringVar(&adapterFlag, "a", "", "Shorthand for -adapter")
	flag.StringVar(&controllerFlag, "controller", "", "Controller type (JOY_CON_L, JOY_CON_R or PRO_CONTROLLER)")
	flag.StringVar(&controllerFlag, "c", "", "Shorthand for -controller")
	flag.IntVar(&verbose, "v", 0, "Verbosity (1 for debug, 2 for trace)")
	flag.StringVar(&configPath, "config", "", "Configuration file path")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			log.Fatal().Err(err).Str("config_path", configPath).Msg("Cannot load configuration")
		}
		cfg = loaded
	}
	if adapterFlag != "" {
		cfg.Adapter = adapterFlag
	}
	if controllerFlag != "" {
		cfg.Controller = controllerFlag
	}
	zerolog.SetGlobalLevel(level(cfg.Log.Level, verbose))

	ctype, err := controller.ParseType(cfg.Controller)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot determine the controller type")
	}

	session, err := bluez.NewSession()
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot connect to the Bluetooth daemon")
	}
	defer session.Close()

	adapterName := cfg.Adapter
	if adapterName == "" {
		adapterName = selectAdapter(session)
	}

	adapter, err := session.Adapter(adapterName)
	if err != nil {
		log.Fatal().Err(err).Str("adapter", adapterName).Msg("Cannot open adapter")
	}

	log.Info().
		Str("adapter", adapterName).
		Stringer("controller", ctype).
		Msg("Starting controller emulation")

	ctrl, err := pairing.NewSession(pairing.SystemCapabilities(session, adapter), ctype, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot create controller session")
	}
	defer ctrl.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	remote, err := ctrl.Pair(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Pairing failed")
	}
	log.Info().Str("remote", remote).Msg("Device paired")

	if err := ctrl.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("Session ended")
		os.Exit(1)
	}
}

// selectAdapter picks the adapter when none was requested: use the only one
// present, or list the candidates and bail out.
func selectAdapter(session *bluez.Session) string {
	names, err := session.AdapterNames()
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot enumerate adapters")
	}
	switch len(names) {
	case 0:
		log.Fatal().Msg("Cannot find an available adapter")
	case 1:
		return names[0]
	default:
		log.Error().Msg("Cannot determine the adapter. Available adapters are listed below, use -a <ADAPTER> to designate:")
		for _, name := range names {
			log.Info().Msgf("    %s", name)
		}
		os.Exit(1)
	}
	return ""
}

// level maps the configured level name and -v occurrences to a zerolog
// level; the more verbose of the two wins.
func level(name string, verbose int) zerolog.Level {
	lvl, err := zerolog.ParseLevel(name)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	switch {
	case verbose >= 2:
		return zerolog.TraceLevel
	case verbose == 1 && lvl > zerolog.DebugLevel:
		return zerolog.DebugLevel
	default:
		return lvl
	}
}
