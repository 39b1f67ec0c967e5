package mqtt

import (
	"encoding/json"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/carelink/dispatchd/core/faults"
	"github.com/carelink/dispatchd/core/model"
	"github.com/carelink/dispatchd/infra/logger"
)

// LocationWriter is the registry surface the ingest needs.
type LocationWriter interface {
	SetLocation(id string, p model.GeoPoint, ts time.Time) error
}

// locationPayload is the on-board unit wire format. recorded_at is RFC 3339;
// a missing timestamp falls back to receive time.
type locationPayload struct {
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	RecordedAt string  `json:"recorded_at"`
}

// Ingest subscribes to per-vehicle location topics and feeds the registry.
type Ingest struct {
	cli    pahoClient
	writer LocationWriter
	topic  string
	qos    byte
	log    logger.Logger
	now    func() time.Time
}

// NewIngest connects to the broker and subscribes to the location topic.
// Call Close to disconnect.
func NewIngest(cfg Config, writer LocationWriter) (*Ingest, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("gps-ingest")
	in := &Ingest{
		writer: writer,
		topic:  cfg.Topic,
		qos:    cfg.QoS,
		log:    log,
		now:    time.Now,
	}
	if in.topic == "" {
		in.topic = DefaultTopic
	}
	opts.OnConnect = func(c paho.Client) {
		log.Infof("mqtt connected, subscribing to %s", in.topic)
		if token := c.Subscribe(in.topic, in.qos, in.onMessage); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	in.cli = c
	return in, nil
}

// Close disconnects from the broker.
func (in *Ingest) Close() {
	if in.cli != nil && in.cli.IsConnected() {
		in.cli.Disconnect(250)
	}
}

// onMessage decodes one position report. Malformed payloads and reports for
// unknown vehicles are logged and dropped; telemetry must never take the
// dispatch path down.
func (in *Ingest) onMessage(_ paho.Client, msg paho.Message) {
	id := ambulanceIDFromTopic(msg.Topic())
	if id == "" {
		in.log.Warnf("location on unroutable topic %s", msg.Topic())
		return
	}
	var p locationPayload
	if err := json.Unmarshal(msg.Payload(), &p); err != nil {
		in.log.Warnf("bad location payload on %s: %v", msg.Topic(), err)
		return
	}
	point := model.GeoPoint{Lat: p.Lat, Lng: p.Lng}
	if !point.Valid() {
		in.log.Warnf("invalid coordinates on %s: %v,%v", msg.Topic(), p.Lat, p.Lng)
		return
	}
	ts := in.now()
	if p.RecordedAt != "" {
		parsed, err := time.Parse(time.RFC3339, p.RecordedAt)
		if err != nil {
			in.log.Warnf("bad recorded_at on %s: %v", msg.Topic(), err)
			return
		}
		ts = parsed
	}
	if err := in.writer.SetLocation(id, point, ts); err != nil {
		if faults.IsNotFound(err) {
			in.log.Warnf("location for unknown ambulance %s dropped", id)
			return
		}
		in.log.Errorf("location update for %s failed: %v", id, err)
	}
}

// ambulanceIDFromTopic extracts the vehicle id from fleet/<id>/location.
func ambulanceIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "fleet" || parts[2] != "location" {
		return ""
	}
	return parts[1]
}
