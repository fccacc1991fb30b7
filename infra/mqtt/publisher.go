package mqtt

import coremqtt "github.com/kilianp07/fleetdispatch/core/mqtt"

// Publisher mirrors the core mqtt.Publisher interface.
type Publisher = coremqtt.Publisher
