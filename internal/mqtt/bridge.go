//go:build !no_mqtt

// Package mqtt publishes the uzigbee converter to Zigbee2MQTT and checks how
// the bridge interviewed uzigbee devices.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"uzigbee-devices/internal/catalog"
	"uzigbee-devices/internal/converter"
	"uzigbee-devices/internal/interview"
	"uzigbee-devices/internal/store"
)

// DefaultConverterName is the file name the bridge stores the converter under.
const DefaultConverterName = "uzigbee.js"

// saveTimeout is how long a save request may stay unanswered before it is
// considered lost.
const saveTimeout = 30 * time.Second

// defaultConnectWait bounds how long NewBridge waits for the first connection.
const defaultConnectWait = 10 * time.Second

// Config holds MQTT bridge configuration.
type Config struct {
	Broker        string
	Username      string
	Password      string
	TopicPrefix   string
	ConverterName string
	ConnectWait   time.Duration // 0 means defaultConnectWait
}

// Bridge keeps the bridge's copy of the converter in sync with the catalog.
type Bridge struct {
	client  pahomqtt.Client
	catalog *catalog.Catalog
	store   store.Store
	prefix  string
	name    string
	logger  *slog.Logger
	unsub   func()

	mu       sync.Mutex
	pending  string    // transaction of the save request in flight
	sentAt   time.Time // when pending was sent
	nextTx   uint64
	checksum string // checksum of the last converter sent
	reports  map[string]interview.Report
	now      func() time.Time
}

// clientID returns a client ID unique to this process.
func clientID() string {
	return "uzb-devices-" + uuid.NewString()[:8]
}

// NewBridge creates an MQTT bridge and starts connecting. st may be nil, in
// which case the converter is published on every connect. A broker that is
// unreachable at start is retried in the background; only a refused
// connection is an error.
func NewBridge(cat *catalog.Catalog, st store.Store, cfg Config, logger *slog.Logger) (*Bridge, error) {
	b := newBridge(cat, st, cfg, logger)

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID()).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(b.prefix+topicOwnState, "offline", 1, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			b.logger.Info("MQTT connected")
			b.publish(b.prefix+topicOwnState, []byte("online"), true)
			b.subscribe()
			b.PublishConverter(false)
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			b.logger.Warn("MQTT connection lost", "err", err)
			b.resetSession()
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	b.client = client
	wait := cfg.ConnectWait
	if wait <= 0 {
		wait = defaultConnectWait
	}
	token := client.Connect()
	if !token.WaitTimeout(wait) {
		b.logger.Warn("MQTT broker unreachable, retrying in background", "broker", cfg.Broker)
		return b, nil
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return b, nil
}

func newBridge(cat *catalog.Catalog, st store.Store, cfg Config, logger *slog.Logger) *Bridge {
	name := cfg.ConverterName
	if name == "" {
		name = DefaultConverterName
	}
	return &Bridge{
		catalog: cat,
		store:   st,
		prefix:  cfg.TopicPrefix,
		name:    name,
		logger:  logger.With("component", "mqtt"),
		reports: make(map[string]interview.Report),
		now:     time.Now,
	}
}

// resetSession forgets what was sent on the lost connection, so the next
// connect checks the converter against the stored publish state again.
func (b *Bridge) resetSession() {
	b.mu.Lock()
	b.pending = ""
	b.checksum = ""
	b.mu.Unlock()
}

// Start republishes the converter whenever the catalog reloads.
func (b *Bridge) Start() {
	b.unsub = b.catalog.Events().On(catalog.EventRegistryReloaded, func(catalog.Event) {
		if b.client.IsConnected() {
			b.PublishConverter(false)
		}
	})
	b.logger.Info("MQTT bridge started", "prefix", b.prefix, "converter", b.name)
}

// Stop publishes offline state, unsubscribes, and disconnects.
func (b *Bridge) Stop() {
	if b.unsub != nil {
		b.unsub()
	}
	b.publish(b.prefix+topicOwnState, []byte("offline"), true)
	b.client.Disconnect(1000)
	b.logger.Info("MQTT bridge stopped")
}

func (b *Bridge) subscribe() {
	handlers := map[string]func(pahomqtt.Message){
		b.prefix + topicConverterResponse: func(m pahomqtt.Message) { b.handleSaveResponse(m.Payload()) },
		b.prefix + topicConverters: func(m pahomqtt.Message) {
			if m.Retained() {
				b.handleRetainedConverters(m.Payload())
			} else {
				b.handleConverters(m.Payload())
			}
		},
		b.prefix + topicDevices: func(m pahomqtt.Message) { b.handleDevices(m.Payload()) },
	}
	for topic, h := range handlers {
		b.client.Subscribe(topic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
			h(msg)
		})
	}
}

// PublishConverter sends the rendered catalog to the bridge. Unless force is
// set, nothing is sent when the bridge already has this exact converter.
func (b *Bridge) PublishConverter(force bool) {
	ds := b.catalog.Descriptors()
	js, err := converter.JS(ds)
	if err != nil {
		b.logger.Error("render converter", "err", err)
		return
	}
	sum := codeChecksum(js)

	if !force && b.upToDate(sum) {
		b.logger.Debug("converter unchanged, not publishing", "checksum", sum[:12])
		return
	}

	b.mu.Lock()
	b.nextTx++
	tx := fmt.Sprintf("uzb-%d", b.nextTx)
	b.pending = tx
	b.sentAt = b.now()
	b.checksum = sum
	b.mu.Unlock()

	req := saveRequest{Name: b.name, Code: js, Transaction: tx}
	b.publish(b.prefix+topicConverterSave, mustJSON(req), false)

	state := &store.PublishState{
		Name:        b.name,
		Checksum:    sum,
		PublishedAt: time.Now(),
		Devices:     len(ds),
		Status:      store.PublishPending,
	}
	if b.store != nil {
		if err := b.store.SavePublishState(state); err != nil {
			b.logger.Warn("save publish state", "err", err)
		}
	}
	b.logger.Info("published converter", "name", b.name, "devices", len(ds), "checksum", sum[:12])
	b.catalog.Events().Emit(catalog.Event{Type: catalog.EventConverterPublished, Data: *state})
}

// upToDate reports whether sum was already sent in this session or confirmed
// by the bridge in an earlier one. A send left unanswered for saveTimeout
// does not count.
func (b *Bridge) upToDate(sum string) bool {
	b.mu.Lock()
	sent := b.checksum
	lost := b.pending != "" && b.now().Sub(b.sentAt) >= saveTimeout
	b.mu.Unlock()
	if sent == sum {
		return !lost
	}
	if sent != "" || b.store == nil {
		return false
	}
	state, err := b.store.GetPublishState(b.name)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			b.logger.Warn("read publish state", "err", err)
		}
		return false
	}
	return state.Checksum == sum && state.Status == store.PublishOK
}

func (b *Bridge) handleSaveResponse(payload []byte) {
	var resp bridgeResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		b.logger.Warn("invalid converter save response", "err", err)
		return
	}

	b.mu.Lock()
	pending := b.pending
	if resp.Transaction != "" && resp.Transaction != pending {
		b.mu.Unlock()
		return // answer to another client's request
	}
	b.pending = ""
	b.mu.Unlock()

	status := store.PublishOK
	if resp.Status != "ok" {
		status = store.PublishError
		b.logger.Error("bridge rejected converter", "name", b.name, "err", resp.Error)
	} else {
		b.logger.Info("bridge accepted converter", "name", b.name)
	}

	state := store.PublishState{Name: b.name, Status: status, Error: resp.Error}
	if b.store != nil {
		err := b.store.UpdatePublishState(b.name, func(st *store.PublishState) error {
			st.Status = status
			st.Error = resp.Error
			state = *st
			return nil
		})
		if err != nil {
			b.logger.Warn("update publish state", "err", err)
		}
	}
	b.catalog.Events().Emit(catalog.Event{Type: catalog.EventConverterPublished, Data: state})
}

// handleRetainedConverters handles the converter list replayed on subscribe.
// It predates any request sent since, so a recent request in flight is
// waited for instead of repeated.
func (b *Bridge) handleRetainedConverters(payload []byte) {
	b.mu.Lock()
	waiting := b.pending != "" && b.now().Sub(b.sentAt) < saveTimeout
	b.mu.Unlock()
	if waiting {
		return
	}
	b.handleConverters(payload)
}

// handleConverters republishes when the bridge's converter list lacks ours or
// holds different code, e.g. after the bridge restarted and dropped a request
// or its data was reset.
func (b *Bridge) handleConverters(payload []byte) {
	var list []converterEntry
	if err := json.Unmarshal(payload, &list); err != nil {
		b.logger.Warn("invalid converter list", "err", err)
		return
	}
	js, err := converter.JS(b.catalog.Descriptors())
	if err != nil {
		b.logger.Error("render converter", "err", err)
		return
	}
	if converterInstalled(list, b.name, codeChecksum(js)) {
		return
	}
	b.logger.Info("bridge converter missing or stale", "name", b.name)
	b.PublishConverter(true)
}

func (b *Bridge) handleDevices(payload []byte) {
	var devices []bridgeDevice
	if err := json.Unmarshal(payload, &devices); err != nil {
		b.logger.Warn("invalid device list", "err", err)
		return
	}
	for _, dev := range devices {
		if !isUzigbee(dev) || !dev.InterviewCompleted {
			continue
		}
		r := interview.Check(b.catalog, identity(dev))
		r.IEEEAddress = dev.IEEEAddress
		r.FriendlyName = dev.FriendlyName

		b.mu.Lock()
		prev, seen := b.reports[dev.IEEEAddress]
		b.reports[dev.IEEEAddress] = r
		b.mu.Unlock()
		if seen && sameReport(prev, r) {
			continue
		}

		if r.Error != "" || !r.Result.OK {
			b.logger.Warn("interview check failed", "ieee", dev.IEEEAddress, "model_id", dev.ModelID,
				"errors", r.Result.Errors, "err", r.Error)
		} else {
			b.logger.Info("interview check passed", "ieee", dev.IEEEAddress, "model", r.Model)
		}
		b.publish(b.prefix+topicInterview+deviceTopicName(dev), mustJSON(r), true)
		b.catalog.Events().Emit(catalog.Event{Type: catalog.EventInterviewChecked, Data: r})
	}
}

func sameReport(a, b interview.Report) bool {
	return string(mustJSON(a)) == string(mustJSON(b))
}

// Reports returns the latest interview check per device, by IEEE address.
func (b *Bridge) Reports() []interview.Report {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]interview.Report, 0, len(b.reports))
	for _, r := range b.reports {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IEEEAddress < out[j].IEEEAddress })
	return out
}

func (b *Bridge) publish(topic string, payload []byte, retained bool) {
	token := b.client.Publish(topic, 1, retained, payload)
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			b.logger.Warn("MQTT publish timeout", "topic", topic)
		} else if err := token.Error(); err != nil {
			b.logger.Warn("MQTT publish error", "topic", topic, "err", err)
		}
	}()
}
