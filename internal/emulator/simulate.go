package emulator

import (
	"context"
	"math"
	"strconv"
	"time"

	"rinnai_gateway/internal/schema"
)

// zone sensor section paired with its set-point section
var zoneSections = [][2]string{
	{"ZUS", "GSO"},
	{"ZAS", "ZAO"},
	{"ZBS", "ZBO"},
	{"ZCS", "ZCO"},
	{"ZDS", "ZDO"},
}

// Simulate moves zone temperatures every tick until ctx is canceled:
// toward the set point while a service runs, toward ambient otherwise.
func (e *Emulator) Simulate(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			elapsed := now.Sub(last).Seconds()
			last = now
			if e.step(elapsed) {
				e.wakeAll()
			}
		}
	}
}

// step advances the simulation by elapsed seconds. Returns true if any
// reported temperature changed.
func (e *Emulator) step(elapsed float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	changed := false
	for group, sections := range e.tree {
		oop, ok := sections["OOP"]
		if !ok {
			continue
		}
		running := schema.FormatValue(oop["ST"]) == "N"

		for _, z := range zoneSections {
			sensor, ok := sections[z[0]]
			if !ok {
				continue
			}
			reported, ok := number(sensor["MT"])
			if !ok || reported == Unavailable {
				continue
			}

			key := group + "." + z[0]
			exact, ok := e.temps[key]
			if !ok || math.Round(exact) != reported {
				exact = reported
			}

			target := float64(AmbientTempC)
			if sp, ok := number(sections[z[1]]["SP"]); running && ok && sp != Unavailable {
				target = sp
			}

			next := approach(exact, target, DegreesPerS*elapsed)
			e.temps[key] = next
			if rounded := math.Round(next); rounded != reported {
				sensor["MT"] = strconv.Itoa(int(rounded))
				changed = true
			}
		}
	}
	return changed
}

func approach(cur, target, delta float64) float64 {
	if cur < target {
		return min(cur+delta, target)
	}
	return max(cur-delta, target)
}

func number(v any) (float64, bool) {
	f, err := strconv.ParseFloat(schema.FormatValue(v), 64)
	return f, err == nil
}
