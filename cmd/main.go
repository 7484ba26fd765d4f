package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"dmxparams/internal/artnet"
	"dmxparams/internal/clientmqtt"
	"dmxparams/internal/config"
	"dmxparams/internal/device"
	"dmxparams/internal/dmx"
	"dmxparams/internal/httpapi"
	"dmxparams/internal/logger"
	"dmxparams/internal/output"
	"dmxparams/internal/script"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cmd := &cli.Command{
		Name:  "dmxparams",
		Usage: "drive a DMX universe through named device parameters",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "configs/conf.toml",
				Usage:   "Path to configuration file",
				Sources: cli.EnvVars("DMXP_CONFIG"),
			},
		},
		Action: run,
		Commands: []*cli.Command{
			{
				Name:      "encode",
				Usage:     "print the channel bytes a value encodes to",
				ArgsUsage: "<device> <param> <value>",
				Action:    encode,
			},
			{
				Name:      "decode",
				Usage:     "print the value raw channel bytes decode to",
				ArgsUsage: "<device> <param> <raw...>",
				Action:    decode,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.NewConfig(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("configuration file read error: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to create a logger: %w", err)
	}
	log.With(logger.Fields{"module": "logger"}).Debug("newLogger created ok")

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	var driver output.Driver
	if cfg.ArtNet.Enabled {
		a, err := artnet.NewController(log, ConvertConfigArtNet(cfg.ArtNet))
		if err != nil {
			return fmt.Errorf("error while creating a new controller art-net: %w", err)
		}
		if err := a.Start(ctx); err != nil {
			return fmt.Errorf("failed to start art-net service: %w", err)
		}
		defer a.Stop()
		driver = a
	} else {
		traceLog := log.Module("output")
		driver = output.DriverFunc(func(u *dmx.Universe) {
			traceLog.Tracef("frame % x", u[:16])
		})
		log.Warn("art-net disabled, frames are not sent anywhere")
	}

	out := output.New(log, driver)
	group := device.NewGroup(out.Buffer(), out)
	if err := buildGroup(group, cfg.Devices); err != nil {
		return err
	}
	log.Module("device").Infof("%d devices patched", len(group.Devices()))

	if cfg.Script.Path != "" {
		engine := script.New(log, group)
		defer engine.Close()
		if err := engine.LoadFile(cfg.Script.Path); err != nil {
			return err
		}
		scriptLog := log.Module("script")
		out.Animate(func(elapsed time.Duration) {
			if err := engine.Frame(elapsed); err != nil {
				scriptLog.Errorf("frame: %v", err)
			}
		})
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.HTTP.Enabled {
		srv := httpapi.New(log, ConvertConfigHTTP(cfg.HTTP), group, out)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("failed to start HTTP service: %w", err)
		}
		out.Animate(srv.Broadcast)
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer scancel()
			return srv.Stop(sctx)
		})
	}

	if cfg.MQTT.Enabled {
		client := clientmqtt.NewClient(log, ConvertConfigClientMQTT(cfg.MQTT), group)
		log.With(logger.Fields{"module": "mqtt"}).Debug("NewClient created ok")
		out.Animate(client.PublishChanges)
		g.Go(func() error {
			if err := client.Start(gctx); err != nil && gctx.Err() == nil {
				return fmt.Errorf("failed to start MQTT service: %w", err)
			}
			<-gctx.Done()
			return client.Stop()
		})
	}

	out.Start(cfg.Output.Framerate)
	if !out.Running() {
		log.Warnf("framerate %v, output not started", cfg.Output.Framerate)
	}

	<-gctx.Done()
	out.Stop()
	// the script engine is closed by a deferred call and must be idle by then
	out.Wait()

	err = g.Wait()
	log.Info("shutdown complete")
	return err
}

// openGroup builds the configured devices over a private universe.
func openGroup(cmd *cli.Command) (*device.Group, *dmx.Universe, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	var u dmx.Universe
	g := device.NewGroup(&u, nil)
	if err := buildGroup(g, cfg.Devices); err != nil {
		return nil, nil, err
	}
	return g, &u, nil
}

func encode(_ context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 3 {
		return errors.New("usage: encode <device> <param> <value>")
	}
	g, u, err := openGroup(cmd)
	if err != nil {
		return err
	}
	dev, name, value := cmd.Args().Get(0), cmd.Args().Get(1), cmd.Args().Get(2)

	if err := g.Set(dev, name, value); err != nil {
		return err
	}
	d, err := g.Device(dev)
	if err != nil {
		return err
	}
	p, err := d.Param(name)
	if err != nil {
		return err
	}
	for _, ch := range p.Channels() {
		idx := d.Address - 1 + ch
		if !dmx.ValidChannel(idx) {
			continue
		}
		fmt.Printf("channel %d: %d\n", idx+1, u[idx])
	}
	return nil
}

func decode(_ context.Context, cmd *cli.Command) error {
	if cmd.NArg() < 3 {
		return errors.New("usage: decode <device> <param> <raw...>")
	}
	g, _, err := openGroup(cmd)
	if err != nil {
		return err
	}
	args := cmd.Args().Slice()
	dev, name := args[0], args[1]

	d, err := g.Device(dev)
	if err != nil {
		return err
	}
	p, err := d.Param(name)
	if err != nil {
		return err
	}
	channels := p.Channels()
	raws := args[2:]
	if len(raws) > len(channels) {
		return fmt.Errorf("%s.%s has %d channels, got %d values", dev, name, len(channels), len(raws))
	}
	for i, s := range raws {
		v, err := strconv.ParseUint(s, 10, 8)
		if err != nil {
			return fmt.Errorf("raw value %q: %w", s, err)
		}
		d.SetChannelValue(channels[i], uint8(v))
	}

	value, err := g.Get(dev, name)
	if err != nil {
		return err
	}
	fmt.Println(value)
	return nil
}
