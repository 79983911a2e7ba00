// Package mqtt connects the planter to an MQTT broker.
//
// The appliance publishes its retained status snapshot, each sensor reading
// and every watering attempt under planter/{site}/..., and listens for
// operator commands on planter/{site}/command/+. A Last Will on the
// availability topic lets dashboards see when the appliance drops off.
//
// Usage:
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT, mqtt.Topics{Site: cfg.Site.ID})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(client.Topics().Status(), snapshot, true)
package mqtt
