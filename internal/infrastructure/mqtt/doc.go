// Package mqtt provides MQTT client connectivity for the intercom daemon.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// MQTT is the daemon's outbound integration bus. Access events pulled from
// the device log and derived door states are published for home-automation
// consumers, and door commands published by those consumers are subscribed
// to and forwarded to the device.
//
//	intercomd ↔ MQTT Broker ↔ automation systems / dashboards
//
// # Topics
//
//	intercom/event/access       one message per successful entry
//	intercom/door/{id}/state    retained derived door state
//	intercom/command/door/{id}  inbound door actions (open/lock/unlock)
//	intercom/enrollment/{uuid}  enrollment outcomes
//	intercom/system/status      retained daemon status + LWT
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllDoorCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        // forward the action to the device
//	        return nil
//	    })
package mqtt
