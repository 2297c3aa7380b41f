// Configuration Loading and Dumping
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
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

// Open reads a key=value configuration file on top of the defaults.
// Unknown keys are ignored, empty values keep the default, and the
// usual `#` and `;` comments apply.
func Open(name string) (*Conf, error) {
	file, err := ini.Load(name)
	if err != nil {
		return nil, errors.Wrapf(err, "load config %s", name)
	}

	c := Default()
	sec := file.Section("")
	c.IP = getStr(sec, "ip", c.IP)
	c.Port = getInt(sec, "port", c.Port)
	c.MaxClients = getInt(sec, "max_clients", c.MaxClients)
	c.MaxRooms = getInt(sec, "max_rooms", c.MaxRooms)
	c.WSPort = getInt(sec, "ws_port", c.WSPort)
	return c, nil
}

func getStr(sec *ini.Section, key, def string) string {
	if !sec.HasKey(key) {
		return def
	}
	v := strings.TrimSpace(sec.Key(key).String())
	if v == "" {
		return def
	}
	return v
}

// Junk numeric values read as zero and are caught by Validate.
func getInt(sec *ini.Section, key string, def int) int {
	v := getStr(sec, key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// Dump serialises the effective configuration in config-file syntax.
func (c *Conf) Dump(w io.Writer) error {
	file := ini.Empty()
	sec := file.Section("")
	sec.Key("ip").SetValue(c.IP)
	sec.Key("port").SetValue(strconv.Itoa(c.Port))
	sec.Key("max_clients").SetValue(strconv.Itoa(c.MaxClients))
	sec.Key("max_rooms").SetValue(strconv.Itoa(c.MaxRooms))
	sec.Key("ws_port").SetValue(strconv.Itoa(c.WSPort))

	_, err := file.WriteTo(w)
	return errors.Wrap(err, "dump config")
}
