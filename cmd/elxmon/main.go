package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/robotalks/elx/pkg/network/mqtt"
)

var (
	mqttURL = "mqtt://localhost:1883/elx/"
)

func init() {
	if val := os.Getenv("ELX_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	token := q.Connect()
	if token.Wait(); token.Error() != nil {
		log.Fatalln(token.Error())
	}

	q.Sub(mqtt.StatusTopic("+"), mqtt.Handler(func(topic string, payload []byte) {
		deviceID := strings.TrimSuffix(topic, "/status")
		var report mqtt.StatusReport
		if err := json.Unmarshal(payload, &report); err != nil {
			log.Printf("%s: bad status: %v", deviceID, err)
			return
		}
		if !report.Online {
			log.Printf("%s: offline", deviceID)
			return
		}
		power := "off"
		if report.On {
			power = "on"
		}
		log.Printf("%s: [%s %s] %s | %s", deviceID, power, report.Background,
			report.Time.Format("Jan 02 15:04:05"), report.Status)
	}))
	<-(chan struct{})(nil)
}
