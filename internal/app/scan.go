// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"

	"github.com/relabs-tech/dot_bridge/internal/ble"
	"github.com/relabs-tech/dot_bridge/internal/dot"
)

// Scanner is implemented by ble.Adapter.
type Scanner interface {
	Scan(ctx context.Context, timeout time.Duration, fn func(ble.Advertisement)) error
}

// RunScan lists nearby DOTs (every device when all is set) seen within timeout.
func RunScan(ctx context.Context, w io.Writer, timeout time.Duration, all bool) error {
	log.Infof("scanning for %s", timeout)
	return scanDevices(ctx, ble.NewAdapter(bluetooth.DefaultAdapter, timeout), w, timeout, all)
}

func scanDevices(ctx context.Context, sc Scanner, w io.Writer, timeout time.Duration, all bool) error {
	var (
		mu   sync.Mutex
		seen = make(map[string]ble.Advertisement)
	)
	err := sc.Scan(ctx, timeout, func(ad ble.Advertisement) {
		mu.Lock()
		defer mu.Unlock()
		// Scan responses often repeat the address without the name.
		if prev, ok := seen[ad.Address]; ok && ad.Name == "" {
			ad.Name = prev.Name
		}
		if !all && !strings.Contains(ad.Name, dot.DeviceName) {
			return
		}
		seen[ad.Address] = ad
	})
	if err != nil {
		return err
	}

	mu.Lock()
	found := make([]ble.Advertisement, 0, len(seen))
	for _, ad := range seen {
		found = append(found, ad)
	}
	mu.Unlock()
	sort.Slice(found, func(i, j int) bool { return found[i].Address < found[j].Address })

	if len(found) == 0 {
		_, err := fmt.Fprintln(w, "no devices found")
		return err
	}
	for _, ad := range found {
		if _, err := fmt.Fprintf(w, "%-20s %4d dBm  %s\n", ad.Address, ad.RSSI, ad.Name); err != nil {
			return err
		}
	}
	return nil
}
