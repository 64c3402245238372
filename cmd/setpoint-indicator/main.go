// Command setpoint-indicator drives three status LEDs from heater
// controller readings received over MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/setpoint-indicator/internal/announce"
	"github.com/sweeney/setpoint-indicator/internal/gpio"
	"github.com/sweeney/setpoint-indicator/internal/leds"
	"github.com/sweeney/setpoint-indicator/internal/logic"
	"github.com/sweeney/setpoint-indicator/internal/metrics"
	"github.com/sweeney/setpoint-indicator/internal/mqtt"
	"github.com/sweeney/setpoint-indicator/internal/status"
	"github.com/sweeney/setpoint-indicator/internal/web"
)

func main() {
	cfg, err := parseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	cfg.WSBroker = resolveWSBroker(cfg.WSBroker, cfg.Broker)

	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg Config) error {
	// Request the LED lines
	pins, err := gpio.OpenPins(cfg.PinAbove, cfg.PinInBand, cfg.PinBelow)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer pins.Close()

	startTime := time.Now()
	ind := leds.New(pins.Above, pins.InBand, pins.Below, cfg.Hysteresis, cfg.UpdateEvery, startTime)
	if err := ind.Begin(); err != nil {
		return fmt.Errorf("blank leds: %w", err)
	}

	// Hardware check mode
	if cfg.TestLEDs {
		if err := ind.SelfTest(); err != nil {
			return fmt.Errorf("self-test: %w", err)
		}
		fmt.Println("LED self-test passed")
		return nil
	}

	if cfg.SelfTest {
		if err := ind.SelfTest(); err != nil {
			log.Printf("self-test error: %v", err)
		}
	}

	// Connect to the broker; controller readings start flowing on subscribe
	client, err := mqtt.NewClient(cfg.Broker)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer client.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(startTime, status.Config{
		PollMs:        cfg.Poll.Milliseconds(),
		UpdateEveryMs: cfg.UpdateEvery.Milliseconds(),
		HysteresisF:   cfg.Hysteresis,
		HeartbeatMs:   cfg.Heartbeat.Milliseconds(),
		Broker:        cfg.Broker,
		HTTPAddr:      cfg.HTTPAddr,
		WSBroker:      cfg.WSBroker,
		PinAbove:      cfg.PinAbove,
		PinInBand:     cfg.PinInBand,
		PinBelow:      cfg.PinBelow,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	tracker.SetMQTTConnected(client.IsConnected())

	m := metrics.New()
	m.SetRegion(ind.Region())
	m.SetMQTTConnected(client.IsConnected())

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := client.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, m.Handler())
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTPAddr)

		if cfg.MDNS {
			ann, err := announce.Start(cfg.HTTPAddr)
			if err != nil {
				log.Printf("mdns announce error: %v", err)
			} else {
				defer ann.Shutdown()
				log.Printf("announcing status page over mdns")
			}
		}
	}

	log.Printf("started: poll=%v update-every=%v hysteresis=%.1f broker=%s heartbeat=%v",
		cfg.Poll, cfg.UpdateEvery, cfg.Hysteresis, cfg.Broker, cfg.Heartbeat)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(ind, client.Readings(), client, client, tracker, m, cfg.Heartbeat, time.Now, ticker.C, sigCh)
}

func runLoop(ind *leds.Indicator, readings <-chan logic.Reading, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, m *metrics.Metrics, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	var lastReading logic.Reading
	haveReading := false

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			if err := ind.AllOff(); err != nil {
				log.Printf("led blank error: %v", err)
			}
			t := now()
			event := mqtt.SystemEvent{
				Timestamp: t,
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				snap := tracker.Snapshot()
				snap.Now = t
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case r := <-readings:
			lastReading = r
			haveReading = true
			ind.Observe(r.TempF, r.SetpointF)
			m.ObserveReading(r.TempF, r.SetpointF)
			if tracker != nil {
				tracker.SetReading(r)
			}

		case <-tick:
			t := now()

			// Renders wait for the first reading; the boot-state region is
			// a guess, not something worth lighting.
			if haveReading {
				prev := ind.Applied()
				rendered, err := ind.Update(t)
				if err != nil {
					log.Printf("gpio write error: %v", err)
				}
				if rendered {
					to := ind.Applied()
					log.Printf("event: region %s -> %s (temp=%.1f setpoint=%.1f)",
						prev, to, lastReading.TempF, lastReading.SetpointF)
					m.Render(to)
					event := logic.Event{
						Timestamp: t,
						From:      prev,
						To:        to,
						TempF:     lastReading.TempF,
						SetpointF: lastReading.SetpointF,
					}
					if err := publisher.Publish(event); err != nil {
						log.Printf("publish error: %v", err)
						// Don't crash on publish failure
					}
				}
			}

			// Check for heartbeat
			if hbData := ind.CheckHeartbeat(t, heartbeat); hbData != nil {
				log.Printf("heartbeat: uptime=%v renders=%d", hbData.Uptime, hbData.Counts.Total())

				hbEvent := mqtt.SystemEvent{
					Timestamp: hbData.Timestamp,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					if mqttStatus != nil {
						tracker.SetMQTTConnected(mqttStatus.IsConnected())
					}
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						tracker.SetNetwork(net)
					}
					tracker.Update(ind.Region(), ind.Applied(), ind.Counts())
					snap := tracker.Snapshot()
					snap.Now = t
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}

			// Update status tracker for HTTP consumers
			if tracker != nil {
				tracker.Update(ind.Region(), ind.Applied(), ind.Counts())
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
			}
			if mqttStatus != nil {
				m.SetMQTTConnected(mqttStatus.IsConnected())
			}
		}
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

// resolveWSBroker converts the -ws-broker flag value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; empty or
// "off" disables the live page.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil {
		log.Printf("ws-broker: cannot parse -broker %q: %v", broker, err)
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
