package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/streadway/amqp"
)

const (
	DefaultQueueName = "taskflow-notifications"
	reconnectDelay   = 30 * time.Second
)

var errNotConnected = errors.New("unable to send message to RabbitMQ server: not connected")

type amqpMessage struct {
	Subject string    `json:"subject"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// AMQP publishes notifications as JSON to a RabbitMQ queue. The connection
// is kept up by a background session that redials after failures; Notify
// fails with a not-connected error while it is down.
type AMQP struct {
	address   string
	queueName string

	mutex       sync.Mutex
	sendChannel *amqp.Channel
	connection  *amqp.Connection

	stopCh chan struct{}
	once   sync.Once
}

func NewAMQP(address, queueName string) *AMQP {
	if queueName == "" {
		queueName = DefaultQueueName
	}
	n := &AMQP{
		address:   address,
		queueName: queueName,
		stopCh:    make(chan struct{}),
	}
	go n.run()
	return n
}

func (n *AMQP) Name() string {
	return "amqp"
}

func (n *AMQP) setChannel(connection *amqp.Connection, ch *amqp.Channel) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.connection = connection
	n.sendChannel = ch
}

func (n *AMQP) sendChannelCreate(connection *amqp.Connection) (*amqp.Channel, error) {
	ch, err := connection.Channel()
	if err != nil {
		return nil, err
	}
	_, err = ch.QueueDeclare(
		n.queueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil)
	if err != nil {
		ch.Close()
		return nil, err
	}
	return ch, nil
}

func (n *AMQP) sleep(d time.Duration) bool {
	select {
	case <-n.stopCh:
		return false
	case <-time.After(d):
		return true
	}
}

func (n *AMQP) run() {
	for {
		connection, err := amqp.Dial(n.address)
		if err != nil {
			log.Warn().Err(err).Msg("amqp dial")
			if !n.sleep(reconnectDelay) {
				return
			}
			continue
		}

		connErrChan := make(chan *amqp.Error, 1)
		connection.NotifyClose(connErrChan)

		sendChannel, err := n.sendChannelCreate(connection)
		if err != nil {
			log.Warn().Err(err).Msg("amqp channel")
			connection.Close()
			if !n.sleep(reconnectDelay) {
				return
			}
			continue
		}
		sendErrChan := make(chan *amqp.Error, 1)
		sendChannel.NotifyClose(sendErrChan)
		n.setChannel(connection, sendChannel)
		log.Info().Str("queue", n.queueName).Msg("amqp connected")

		for isConnected := true; isConnected; {
			select {
			case <-n.stopCh:
				n.setChannel(nil, nil)
				connection.Close()
				return

			case qerr := <-sendErrChan:
				log.Warn().Interface("error", qerr).Msg("amqp send channel")
				sendChannel, err = n.sendChannelCreate(connection)
				if err == nil {
					sendErrChan = make(chan *amqp.Error, 1)
					sendChannel.NotifyClose(sendErrChan)
					n.setChannel(connection, sendChannel)
				} else {
					log.Warn().Err(err).Msg("amqp send channel reconnect")
					connection.Close()
					isConnected = false
				}

			case qerr := <-connErrChan:
				log.Warn().Interface("error", qerr).Msg("amqp connection")
				isConnected = false
			}
		}
		n.setChannel(nil, nil)
	}
}

func (n *AMQP) Notify(subject, message string) error {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	if n.sendChannel == nil {
		return errNotConnected
	}
	body, err := json.Marshal(amqpMessage{Subject: subject, Message: message, Time: time.Now()})
	if err != nil {
		return fmt.Errorf("RabbitMQ send: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	}
	return n.sendChannel.Publish(
		"",          // exchange
		n.queueName, // routing-key
		false,       // mandatory
		false,       // immediate
		msg)
}

// Close stops the session and closes any open connection.
func (n *AMQP) Close() error {
	n.once.Do(func() { close(n.stopCh) })
	return nil
}
