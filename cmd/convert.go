package main

import (
	"fmt"

	"dmxparams/internal/artnet"
	"dmxparams/internal/clientmqtt"
	"dmxparams/internal/config"
	"dmxparams/internal/device"
	"dmxparams/internal/httpapi"
	"dmxparams/internal/param"
)

// ConvertConfigClientMQTT преобразует структуры.
func ConvertConfigClientMQTT(cfg config.MQTTConf) clientmqtt.MQTTConf {
	return clientmqtt.MQTTConf{
		ClientID: cfg.ClientID,
		Schema:   "tcp",
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		Qos:      cfg.Qos,
		Prefix:   cfg.Prefix,
	}
}

// ConvertConfigArtNet преобразует структуры.
func ConvertConfigArtNet(cfg config.ArtNetConf) artnet.Conf {
	return artnet.Conf{
		Network:  cfg.Network,
		Universe: cfg.Universe,
		MaxFPS:   cfg.MaxFPS,
	}
}

// ConvertConfigHTTP преобразует структуры.
func ConvertConfigHTTP(cfg config.HTTPConf) httpapi.Conf {
	return httpapi.Conf{
		Listen:      cfg.Listen,
		CORSOrigins: cfg.CORSOrigins,
	}
}

// buildGroup patches the configured devices into g.
func buildGroup(g *device.Group, devices []config.DeviceConf) error {
	for _, dc := range devices {
		d, err := g.AddDevice(dc.Name, dc.Address)
		if err != nil {
			return err
		}
		for _, pc := range dc.Params {
			p, err := buildParam(pc)
			if err != nil {
				return fmt.Errorf("device %q param %q: %w", dc.Name, pc.Name, err)
			}
			if err := d.AddParam(pc.Name, p); err != nil {
				return err
			}
		}
	}
	return nil
}

func buildParam(pc config.ParamConf) (param.Param, error) {
	switch pc.Type {
	case config.ParamMultiRange:
		defs := make([]param.RangeDefinition, len(pc.Ranges))
		for i, r := range pc.Ranges {
			defs[i] = param.RangeDefinition{Key: r.Key, DMX: r.DMX, ValueRange: r.Values}
		}
		return param.NewMultiRange(pc.Channel, defs)

	case config.ParamScalar:
		channels := pc.Channels
		if len(channels) == 0 {
			channels = []int{pc.Channel}
		}
		min, max := pc.Min, pc.Max
		if min == 0 && max == 0 {
			max = 1
		}
		return param.NewScalar(min, max, channels...)
	}
	return nil, fmt.Errorf("unknown param type %q", pc.Type)
}
