package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/grid-x/nibe"
)

const (
	statusOnline  = "online"
	statusOffline = "offline"
)

// publisher is the part of mqtt.Client used by mqttObserver.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publications queued while the broker is slow, dropped beyond.
const mqttQueueSize = 64

// mqttObserver publishes every changed value retained to <prefix>/<coil>.
// Observer calls only enqueue, the publications are sent by a single
// goroutine so that a slow broker never holds up the read loop.
type mqttObserver struct {
	client  publisher
	prefix  string
	qos     byte
	timeout time.Duration
	log     *slog.Logger

	mu     sync.Mutex
	closed bool
	queue  chan mqttMessage
	wg     sync.WaitGroup
}

type mqttMessage struct {
	topic    string
	retained bool
	payload  string
}

func newMQTTObserver(client publisher, cfg MQTTConfig, log *slog.Logger) *mqttObserver {
	o := &mqttObserver{
		client:  client,
		prefix:  cfg.TopicPrefix,
		qos:     cfg.QoS,
		timeout: cfg.Timeout,
		log:     log,
		queue:   make(chan mqttMessage, mqttQueueSize),
	}
	o.wg.Add(1)
	go o.run()
	return o
}

func (o *mqttObserver) ValueChanged(coil uint16, info nibe.VariableInfo, value float64) {
	o.enqueue(mqttMessage{o.valueTopic(coil), true, strconv.FormatFloat(value, 'f', -1, 64)})
}

func (o *mqttObserver) ConnectivityDegraded(err error) {
	o.enqueue(mqttMessage{o.prefix + "/error", false, err.Error()})
}

// Close publishes what is queued and stops the publisher.
func (o *mqttObserver) Close() {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.queue)
	}
	o.mu.Unlock()
	o.wg.Wait()
}

func (o *mqttObserver) valueTopic(coil uint16) string {
	return fmt.Sprintf("%s/%d", o.prefix, coil)
}

func (o *mqttObserver) enqueue(m mqttMessage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	select {
	case o.queue <- m:
	default:
		o.log.Warn("mqtt queue full, dropping publication", "topic", m.topic)
	}
}

func (o *mqttObserver) run() {
	defer o.wg.Done()
	for m := range o.queue {
		o.publish(m)
	}
}

func (o *mqttObserver) publish(m mqttMessage) {
	token := o.client.Publish(m.topic, o.qos, m.retained, m.payload)
	if !token.WaitTimeout(o.timeout) {
		o.log.Warn("mqtt publish timed out", "topic", m.topic)
		return
	}
	if err := token.Error(); err != nil {
		o.log.Warn("mqtt publish failed", "topic", m.topic, "err", err)
	}
}

// connectMQTT connects to the broker. The status topic is set to online on
// every (re)connect and to offline by the broker once the client is gone.
func connectMQTT(cfg MQTTConfig, log *slog.Logger) (mqtt.Client, error) {
	statusTopic := cfg.TopicPrefix + "/status"

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(cfg.Timeout)
	opts.SetWill(statusTopic, statusOffline, cfg.QoS, true)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		log.Info("connected to mqtt broker", "broker", cfg.Broker)
		token := c.Publish(statusTopic, cfg.QoS, true, statusOnline)
		if token.WaitTimeout(cfg.Timeout) && token.Error() != nil {
			log.Warn("could not publish status", "err", token.Error())
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("lost mqtt connection", "err", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("mqtt: connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", cfg.Broker, err)
	}
	return client, nil
}

// disconnectMQTT marks the daemon offline and disconnects.
func disconnectMQTT(client mqtt.Client, cfg MQTTConfig) {
	token := client.Publish(cfg.TopicPrefix+"/status", cfg.QoS, true, statusOffline)
	token.WaitTimeout(cfg.Timeout)
	client.Disconnect(250)
}
