// Package slash turns typed shorthands such as "/report 1 Main St" into the
// natural-language instructions the chat backend understands.
package slash

import (
	"errors"
	"fmt"
	"strings"

	"droneops-console/internal/profile"
)

// Prefix marks a slash command.
const Prefix = "/"

var (
	// ErrNotCommand is returned by Resolve for input without the prefix.
	ErrNotCommand = errors.New("not a slash command")
	// ErrUnknownCommand is returned for a prefixed name missing from the table.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrMissingArgument is returned when a command that takes an argument
	// gets none.
	ErrMissingArgument = errors.New("missing argument")
)

// Command is one entry of the table.
type Command struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// Arg names the argument the command expects, empty if it takes none.
	Arg string `json:"arg,omitempty"`

	expand func(arg string) string
}

// Expand renders the instruction for arg.
func (c Command) Expand(arg string) string { return c.expand(arg) }

// Usage renders the command as it is typed.
func (c Command) Usage() string {
	if c.Arg == "" {
		return Prefix + c.Name
	}
	return fmt.Sprintf("%s%s <%s>", Prefix, c.Name, c.Arg)
}

// Table is an ordered, immutable set of commands.
type Table struct {
	cmds  []Command
	index map[string]int
}

func fixed(s string) func(string) string { return func(string) string { return s } }

// NewTable builds the command table worded for the mission profile p.
func NewTable(p *profile.Profile) *Table {
	incident, image := p.Incident, p.EdgeImage
	const network = "Connected Network Type and Device Reachability Status"
	cmds := []Command{
		{Name: "check-network-status", Description: network,
			expand: fixed("Check drone kit's connected network type")},
		{Name: "subscribe-network-change", Description: network + " Subscriptions",
			expand: fixed("Create a subscription on device network type change")},
		{Name: "preflight-check", Description: "SIM Swap, Device Swap and Number Verification",
			expand: fixed("Conduct preflight device integrity check")},
		{Name: "qos", Description: "QoS profiles",
			expand: fixed("Get all available QoS profiles")},
		{Name: "report", Description: fmt.Sprintf("Report a %s at a specific address", incident), Arg: "address",
			expand: func(a string) string { return fmt.Sprintf("A %s is reported at %s", incident, a) }},
		{Name: "subscribe-geofence", Description: "Geofencing Subscriptions", Arg: "radius",
			expand: func(a string) string {
				return fmt.Sprintf("Create geofencing subscription at this location with radius of %sm for the drone kit", a)
			}},
		{Name: "verify-location", Description: "Location Verification",
			expand: fixed(fmt.Sprintf("Check if drone kit has arrived the %s scene", incident))},
		{Name: "edge-discovery", Description: "Simple Edge Discovery",
			expand: fixed("Find closest edge computing node location from the drone kit")},
		{Name: "deploy-edge-application", Description: "Edge Application Management",
			expand: fixed(fmt.Sprintf("deploy the %s image in this edge computing node (image id: %s)", image.Label, image.ID))},
		{Name: "accept-webrtc-call", Description: "WebRTC Call Handling",
			expand: fixed("Accept drone's incoming WebRTC call")},
		{Name: "create-qod", Description: "Create QoD session", Arg: "qos-profile",
			expand: func(a string) string { return "create a new QoD session for this webrtc media call using " + a }},
		{Name: "terminate-webrtc-call", Description: "WebRTC Call Handling",
			expand: fixed("Terminate drone's ongoing WebRTC call")},
		{Name: "undeploy-edge-application", Description: "Edge Application Management",
			expand: fixed(fmt.Sprintf("undeploy the %s image", image.Label))},
		{Name: "unsubscribe-geofence", Description: "Geofencing Subscriptions",
			expand: fixed("Remove geofencing subscription created earlier for drone kit")},
		{Name: "unsubscribe-network-change", Description: network + " Subscriptions",
			expand: fixed("Cancel the network type subscription created earlier for drone kit")},
		{Name: "mission-complete", Description: "Complete the current mission",
			expand: fixed("mission completed")},
	}
	t := &Table{cmds: cmds, index: make(map[string]int, len(cmds))}
	for i, c := range cmds {
		t.index[c.Name] = i
	}
	return t
}

// Parse splits input into the case-folded command name and its argument.
// ok is false when input does not start with the prefix.
func Parse(input string) (name, arg string, ok bool) {
	s, ok := strings.CutPrefix(strings.TrimSpace(input), Prefix)
	if !ok {
		return "", "", false
	}
	name, arg, _ = strings.Cut(s, " ")
	return strings.ToLower(name), strings.TrimSpace(arg), true
}

// Lookup finds a command by name, ignoring case.
func (t *Table) Lookup(name string) (Command, bool) {
	i, ok := t.index[strings.ToLower(name)]
	if !ok {
		return Command{}, false
	}
	return t.cmds[i], true
}

// IsCommand reports whether input names a known command.
func (t *Table) IsCommand(input string) bool {
	name, _, ok := Parse(input)
	if !ok {
		return false
	}
	_, ok = t.Lookup(name)
	return ok
}

// Resolve expands input into its instruction.
func (t *Table) Resolve(input string) (string, error) {
	name, arg, ok := Parse(input)
	if !ok {
		return "", ErrNotCommand
	}
	c, ok := t.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %s%s", ErrUnknownCommand, Prefix, name)
	}
	if c.Arg != "" && arg == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingArgument, c.Usage())
	}
	return c.Expand(arg), nil
}

// Commands returns the table in order.
func (t *Table) Commands() []Command {
	return append([]Command(nil), t.cmds...)
}

// Suggest returns the commands whose name or description contains filter,
// ignoring case, in table order. An empty filter returns every command.
func (t *Table) Suggest(filter string) []Command {
	f := strings.ToLower(strings.TrimPrefix(filter, Prefix))
	if f == "" {
		return t.Commands()
	}
	var out []Command
	for _, c := range t.cmds {
		if strings.Contains(strings.ToLower(c.Name), f) || strings.Contains(strings.ToLower(c.Description), f) {
			out = append(out, c)
		}
	}
	return out
}
