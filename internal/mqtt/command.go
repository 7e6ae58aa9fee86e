package mqtt

import (
	"log"

	"github.com/sweeney/coop-door/internal/door"
)

// Commander executes remote door commands.
type Commander interface {
	Do(cmd door.Command) error
}

// CommandHandler returns a Handlers.OnCommand callback that parses each
// payload and runs it against c. Failures are logged and never returned to
// the broker.
func CommandHandler(c Commander) func(payload []byte) {
	return func(payload []byte) {
		cmd, err := door.ParseCommand(string(payload))
		if err != nil {
			log.Printf("mqtt: %v", err)
			return
		}
		if err := c.Do(cmd); err != nil {
			log.Printf("mqtt: command %s: %v", cmd, err)
			return
		}
		log.Printf("mqtt: command %s accepted", cmd)
	}
}
