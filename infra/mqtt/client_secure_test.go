package mqtt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetdispatch/core/events"
	coremqtt "github.com/kilianp07/fleetdispatch/core/mqtt"
)

// helper to generate self-signed cert
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = dir + "/cert.pem"
	keyFile = dir + "/key.pem"
	caFile = dir + "/ca.pem"
	require.NoError(t, os.WriteFile(certFile, certPEM, 0o644))
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0o644))
	require.NoError(t, os.WriteFile(caFile, certPEM, 0o644))
	return
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	require.NoError(t, err)
	assert.NotEmpty(t, tlsCfg.Certificates)
	assert.NotNil(t, tlsCfg.RootCAs)

	_, err = Config{UseTLS: true}.LoadTLSConfig()
	assert.Error(t, err)
}

func TestNewClientOptionsAuth(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, "u", opts.Username)
	assert.Equal(t, "p", opts.Password)

	opts, err = NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", AuthMethod: "certificate"})
	require.NoError(t, err)
	assert.Empty(t, opts.Username)
}

func TestConfig_DefaultsAndValidate(t *testing.T) {
	var c Config
	c.SetDefaults()
	assert.Equal(t, DefaultTopicPrefix, c.TopicPrefix)
	assert.NotEmpty(t, c.ClientID)
	assert.Equal(t, 3, c.MaxRetries)
	assert.NoError(t, c.Validate(), "disabled client is not validated")

	c.Enabled = true
	assert.Error(t, c.Validate())
	c.Broker = "tcp://localhost:1883"
	assert.NoError(t, c.Validate())
	c.QoS = map[string]byte{"assignment": 3}
	assert.Error(t, c.Validate())
	c.QoS = nil
	c.AuthMethod = "kerberos"
	assert.Error(t, c.Validate())
}

func withMock(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } })
}

func TestPublishEvent_TopicsAndQoS(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "id", QoS: map[string]byte{"assignment": 1}})
	require.NoError(t, err)

	a := events.AssignmentEvent{TripID: "t1", VehicleID: "bus-1", Capacity: 4}
	require.NoError(t, cli.PublishEvent(a))
	require.NoError(t, cli.PublishEvent(events.RejectionEvent{Outcome: "no_vehicle_available"}))
	require.NoError(t, cli.PublishEvent(events.LocationEvent{VehicleID: "bus-1"}), "unpublished events are ignored")

	require.Len(t, mc.published, 2)
	assert.Equal(t, "fleetdispatch/assignments/bus-1", mc.published[0].topic)
	assert.Equal(t, byte(1), mc.published[0].qos)
	assert.Equal(t, "fleetdispatch/rejections", mc.published[1].topic)
	assert.Equal(t, byte(0), mc.published[1].qos)

	var got events.AssignmentEvent
	require.NoError(t, json.Unmarshal(mc.published[0].payload, &got))
	assert.Equal(t, a, got)
}

func TestTopics(t *testing.T) {
	cli := &PahoClient{prefix: "fd"}
	assert.Equal(t, "fd/cancellations/v", cli.Topic(events.CancellationEvent{VehicleID: "v"}))
	assert.Equal(t, "fd/reschedules/v", cli.Topic(events.RescheduleEvent{VehicleID: "v"}))
	assert.Equal(t, "fd/status/v", cli.Topic(events.StatusEvent{VehicleID: "v"}))
	assert.Empty(t, cli.Topic("noise"))
}

func TestLWTConfigured(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "id", LWTTopic: "lwt", LWTPayload: "bye", LWTQoS: 1})
	require.NoError(t, err)
	assert.True(t, mc.opts.WillEnabled)
	assert.Equal(t, "lwt", mc.opts.WillTopic)
	assert.Equal(t, "bye", string(mc.opts.WillPayload))
	cli.Disconnect()
	assert.Empty(t, mc.published, "unexpected publish on disconnect")
}

func TestRetryLogic(t *testing.T) {
	mc := &mockClient{publishErrs: []error{fmt.Errorf("net fail"), nil}}
	withMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "id", MaxRetries: 1, BackoffMS: 1})
	require.NoError(t, err)
	require.NoError(t, cli.PublishEvent(events.AssignmentEvent{VehicleID: "v"}))
	assert.Len(t, mc.published, 2)
}

func TestRetryExhausted(t *testing.T) {
	fail := fmt.Errorf("net fail")
	mc := &mockClient{publishErrs: []error{fail, fail, fail}}
	withMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "id", MaxRetries: 2, BackoffMS: 1})
	require.NoError(t, err)
	err = cli.PublishEvent(events.AssignmentEvent{VehicleID: "v"})
	assert.True(t, errors.Is(err, coremqtt.ErrPublish))
	assert.Len(t, mc.published, 3)
}

func TestConnectError(t *testing.T) {
	mc := &mockClient{connectErr: fmt.Errorf("refused")}
	withMock(t, mc)
	_, err := NewPahoClient(Config{Broker: "tcp://localhost:1883"})
	assert.Error(t, err)
}

func TestSubscribeLocations(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "id", QoS: map[string]byte{"location": 1}})
	require.NoError(t, err)

	type report struct {
		id  string
		loc coremqtt.Location
	}
	var got []report
	require.NoError(t, cli.SubscribeLocations(func(id string, loc coremqtt.Location) {
		got = append(got, report{id, loc})
	}))
	require.Len(t, mc.subscribed, 1)
	assert.Equal(t, "fleetdispatch/vehicles/+/location", mc.subscribed[0].topic)
	assert.Equal(t, byte(1), mc.subscribed[0].qos)

	h := mc.subscribed[0].handler
	h(nil, mockMessage{topic: "fleetdispatch/vehicles/bus-1/location", p: []byte(`{"lat":48.85,"lng":2.35}`)})
	h(nil, mockMessage{topic: "fleetdispatch/vehicles/bus-1/location", p: []byte(`not json`)})
	h(nil, mockMessage{topic: "fleetdispatch/vehicles/a/b/location", p: []byte(`{}`)})
	h(nil, mockMessage{topic: "other/vehicles/bus-1/location", p: []byte(`{}`)})

	require.Len(t, got, 1)
	assert.Equal(t, "bus-1", got[0].id)
	assert.Equal(t, coremqtt.Location{Lat: 48.85, Lng: 2.35}, got[0].loc)

	// a reconnect restores the subscription
	mc.opts.OnConnect(mc)
	assert.Len(t, mc.subscribed, 2)
}

type pubRecord struct {
	topic   string
	qos     byte
	payload []byte
}

type subRecord struct {
	topic   string
	qos     byte
	handler paho.MessageHandler
}

// mockClient implements pahoClient for tests
type mockClient struct {
	mu          sync.Mutex
	opts        *paho.ClientOptions
	subscribed  []subRecord
	published   []pubRecord
	publishErrs []error
	connectErr  error
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.connectErr != nil {
		return &dummyToken{err: m.connectErr}
	}
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, qos byte, _ bool, payload interface{}) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, _ := payload.([]byte)
	m.published = append(m.published, pubRecord{topic, qos, b})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}
func (m *mockClient) Subscribe(topic string, qos byte, h paho.MessageHandler) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribed = append(m.subscribed, subRecord{topic, qos, h})
	return &dummyToken{}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return true }

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct {
	topic string
	p     []byte
}

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return m.topic }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}
