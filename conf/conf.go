// Configuration Specification and Management
//
// Copyright (c) 2024, 2025  the go-prsi authors
//
// This file is part of go-prsi.
//
// go-prsi is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License,
// version 3, as published by the Free Software Foundation.
//
// go-prsi is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public
// License, version 3, along with go-prsi. If not, see
// <http://www.gnu.org/licenses/>

package conf

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Hard caps on the slot tables. Configured values above these are
// clamped silently.
const (
	HardMaxClients = 128
	HardMaxRooms   = 64
)

// Conf carries the effective server settings and the logger injected
// into every component.
type Conf struct {
	IP         string // Address the listeners bind to
	Port       int    // TCP port of the line protocol
	MaxClients int    // Client slot table size
	MaxRooms   int    // Room table size
	WSPort     int    // WebSocket port, 0 disables the transport

	Log *logrus.Logger
}

// Default returns a fresh configuration with the stock settings.
func Default() *Conf {
	return &Conf{
		IP:         "0.0.0.0",
		Port:       7777,
		MaxClients: 128,
		MaxRooms:   32,
		WSPort:     0,

		Log: logrus.StandardLogger(),
	}
}

// Validate rejects out-of-range settings and clamps the table sizes
// to their hard caps.
func (c *Conf) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("invalid port %d", c.Port)
	}
	if c.WSPort < 0 || c.WSPort > 65535 {
		return errors.Errorf("invalid ws_port %d", c.WSPort)
	}
	if c.MaxClients < 1 {
		return errors.Errorf("invalid max_clients %d", c.MaxClients)
	}
	if c.MaxRooms < 1 {
		return errors.Errorf("invalid max_rooms %d", c.MaxRooms)
	}

	if c.MaxClients > HardMaxClients {
		c.MaxClients = HardMaxClients
	}
	if c.MaxRooms > HardMaxRooms {
		c.MaxRooms = HardMaxRooms
	}
	return nil
}

// Fields renders the effective settings for the startup log line.
func (c *Conf) Fields() logrus.Fields {
	return logrus.Fields{
		"ip":          c.IP,
		"port":        c.Port,
		"max_clients": c.MaxClients,
		"max_rooms":   c.MaxRooms,
		"ws_port":     c.WSPort,
	}
}
