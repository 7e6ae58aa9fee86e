package door

import (
	"fmt"
	"strings"
)

// Command is a remote request to the controller.
type Command string

const (
	CommandOpen      Command = "OPEN"
	CommandClose     Command = "CLOSE"
	CommandStop      Command = "STOP"
	CommandLightOn   Command = "LIGHT_ON"
	CommandLightOff  Command = "LIGHT_OFF"
	CommandLightAuto Command = "LIGHT_AUTO"
)

// ParseCommand accepts a command name in any case, surrounded by whitespace.
func ParseCommand(s string) (Command, error) {
	cmd := Command(strings.ToUpper(strings.TrimSpace(s)))
	switch cmd {
	case CommandOpen, CommandClose, CommandStop, CommandLightOn, CommandLightOff, CommandLightAuto:
		return cmd, nil
	}
	return "", fmt.Errorf("%w: unknown command %q", ErrInvalidCommand, s)
}

// Do runs cmd against the controller.
func (c *Controller) Do(cmd Command) error {
	switch cmd {
	case CommandOpen:
		return c.OpenDoor()
	case CommandClose:
		return c.CloseDoor()
	case CommandStop:
		return c.EmergencyStop()
	case CommandLightOn:
		return c.SetLight(true)
	case CommandLightOff:
		return c.SetLight(false)
	case CommandLightAuto:
		return c.SetLightAuto()
	}
	return fmt.Errorf("%w: unknown command %q", ErrInvalidCommand, string(cmd))
}
