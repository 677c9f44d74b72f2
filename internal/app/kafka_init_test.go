package app

import (
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestInitKafkaProducer_NoBrokers(t *testing.T) {
	if producer := initKafkaProducer(nil, "orders", log.WithField("test", t.Name())); producer != nil {
		t.Fatal("expected nil producer without brokers")
	}
}

func TestInitKafkaProducer_UnreachableBroker(t *testing.T) {
	producer := initKafkaProducer([]string{"127.0.0.1:1"}, "orders", log.WithField("test", t.Name()))
	if producer != nil {
		closeKafka(producer, log.WithField("test", t.Name()))
		t.Fatal("expected nil producer for unreachable broker")
	}
}

func TestCloseKafka_Nil(t *testing.T) {
	// не должно паниковать
	closeKafka(nil, log.WithField("test", t.Name()))
}
