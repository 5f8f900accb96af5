package console

import (
	"fmt"
	"sort"
	"strings"
)

// CommandFunc runs a command; args excludes the command name.
type CommandFunc func(c *Console, args []string) error

type Command struct {
	Name  string
	Usage string
	Desc  string
	Run   CommandFunc
}

type registry struct {
	cmds map[string]Command
}

func newRegistry() *registry {
	return &registry{cmds: make(map[string]Command)}
}

func (r *registry) register(cmd Command) error {
	cmd.Name = strings.ToLower(strings.TrimSpace(cmd.Name))
	if cmd.Name == "" {
		return fmt.Errorf("console registry: empty command name")
	}
	if cmd.Run == nil {
		return fmt.Errorf("console registry: %q has no handler", cmd.Name)
	}
	if _, ok := r.cmds[cmd.Name]; ok {
		return fmt.Errorf("console registry: duplicate command %q", cmd.Name)
	}
	r.cmds[cmd.Name] = cmd
	return nil
}

func (r *registry) resolve(name string) (Command, bool) {
	cmd, ok := r.cmds[strings.ToLower(strings.TrimSpace(name))]
	return cmd, ok
}

func (r *registry) names() []string {
	out := make([]string, 0, len(r.cmds))
	for name := range r.cmds {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
