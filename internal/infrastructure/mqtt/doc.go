// Package mqtt provides the MQTT state sink for the fetcher.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Retained publishing of per-device state and per-source health
//   - Last Will and Testament (LWT) for offline detection
//
// The fetcher only publishes; it never subscribes.
//
// # Topics
//
//	fetcher/system/status          {"status":"online"|"offline",...}
//	fetcher/state/{source}/{id}    latest metric fields for one device
//	fetcher/health/{source}        outcome of the last collection cycle
//
// # Usage
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(mqtt.Topics{}.DeviceState("eufy", sn), fields)
package mqtt
