package storage

import (
	"encoding/json"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/janelia-flyem/catvol/catvol"

	"github.com/Shopify/sarama"
)

var (
	kafkaMu sync.RWMutex

	// producer is nil when no kafka servers are configured.
	kafkaProducer sarama.AsyncProducer

	// the kafka topic for activity logging
	kafkaActivityTopicName string
)

// KafkaMaxMessageSize is the max message size in bytes for a Kafka message.
const KafkaMaxMessageSize = 980 * catvol.Kilo

// KafkaConfig describes kafka servers and the topic for activity logging.
type KafkaConfig struct {
	TopicActivity string `toml:"topicActivity"` // if supplied, will be override topic for activity log
	Servers       []string
	BufferSize    int `toml:"bufferSize"` // max buffered messages
}

// Initialize sets up the activity producer.  It is a no-op if no servers are given.
func (kc KafkaConfig) Initialize(hostID string) error {
	if len(kc.Servers) == 0 {
		catvol.Infof("No Kafka server specified; activity logging to kafka is off.\n")
		return nil
	}
	topic := kc.TopicActivity
	if topic == "" {
		topic = "catvolactivity-" + hostID
	}
	reg, err := regexp.Compile(`[^a-zA-Z0-9\._\-]+`)
	if err != nil {
		return err
	}
	topic = reg.ReplaceAllString(topic, "-")

	config := sarama.NewConfig()
	config.Producer.MaxMessageBytes = KafkaMaxMessageSize
	if kc.BufferSize > 0 {
		config.ChannelBufferSize = kc.BufferSize
	}
	producer, err := sarama.NewAsyncProducer(kc.Servers, config)
	if err != nil {
		return err
	}
	SetKafkaProducer(producer, topic)
	catvol.Infof("Kafka topic for catvol activity: %s\n", topic)
	return nil
}

// SetKafkaProducer installs a producer for activity logging and starts draining its
// error channel.
func SetKafkaProducer(producer sarama.AsyncProducer, topic string) {
	kafkaMu.Lock()
	kafkaProducer = producer
	kafkaActivityTopicName = topic
	kafkaMu.Unlock()

	go func() {
		for err := range producer.Errors() {
			catvol.Errorf("error on kafka send to %s: %v\n", err.Msg.Topic, err.Err)
		}
	}()
}

// KafkaActivityTopic returns the topic name used for logging activity for this server.
func KafkaActivityTopic() string {
	kafkaMu.RLock()
	defer kafkaMu.RUnlock()
	return kafkaActivityTopicName
}

// KafkaShutdown makes sure that the kafka queue is flushed before stopping.
func KafkaShutdown() {
	kafkaMu.Lock()
	defer kafkaMu.Unlock()
	if kafkaProducer == nil {
		return
	}
	if err := kafkaProducer.Close(); err != nil {
		catvol.Errorf("Kafka producer had error on close: %v\n", err)
	} else {
		catvol.Infof("Successfully shut down kafka producer.\n")
	}
	kafkaProducer = nil
}

// LogActivityToKafka publishes an activity record, e.g. a volume build or tile write.
func LogActivityToKafka(activity map[string]interface{}) {
	kafkaMu.RLock()
	producer, topic := kafkaProducer, kafkaActivityTopicName
	kafkaMu.RUnlock()
	if producer == nil {
		return
	}
	jsonmsg, err := json.Marshal(activity)
	if err != nil {
		catvol.Errorf("unable to marshal activity for kafka logging: %v\n", err)
		return
	}
	timeKey := sarama.StringEncoder(strconv.FormatInt(time.Now().UnixNano(), 10))
	producer.Input() <- &sarama.ProducerMessage{Topic: topic, Value: sarama.ByteEncoder(jsonmsg), Key: timeKey}
}
