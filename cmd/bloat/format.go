// This file is part of GoRE.
//
// Copyright (C) 2019-2024 GoRE Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"
)

// messageFormat is the value of --message-format.
type messageFormat string

const (
	formatTable messageFormat = "table"
	formatJSON  messageFormat = "json"
)

var _ flag.Value = (*messageFormat)(nil)

func (f *messageFormat) String() string {
	return string(*f)
}

func (f *messageFormat) Set(s string) error {
	switch messageFormat(s) {
	case formatTable, formatJSON:
		*f = messageFormat(s)
		return nil
	default:
		return errors.Errorf("unknown message format %q, expected %q or %q", s, formatTable, formatJSON)
	}
}

func (f *messageFormat) Type() string {
	return "format"
}
