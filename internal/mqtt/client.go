package mqtt

import (
	"fmt"
	"time"

	"gantry-control/internal/config"
	"gantry-control/internal/interfaces"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// NewClient connects to the broker. onConnect runs after every (re)connect so
// subscriptions survive a broker restart.
func NewClient(cfg *config.Config, logger interfaces.Logger, onConnect func(mqtt.Client)) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTTBroker)
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetUsername(cfg.MQTTUsername)
	opts.SetPassword(cfg.MQTTPassword)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(10 * time.Second)
	opts.SetCleanSession(true)

	// 연결 상태 콜백
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		logger.Infof("MQTT client connected to %s", cfg.MQTTBroker)
		if onConnect != nil {
			onConnect(c)
		}
	})

	opts.SetConnectionLostHandler(func(c mqtt.Client, err error) {
		logger.Errorf("MQTT connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)

	// 연결 시도
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return client, nil
}
