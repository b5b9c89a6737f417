package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/moose-rewards/moose/internal/app/dispatch"
	"github.com/moose-rewards/moose/internal/daemon"
)

func init() {
	rootCmd.AddCommand(invokeCmd)
	rootCmd.AddCommand(commandsCmd)
	rootCmd.AddCommand(configCmd)

	invokeCmd.Flags().String("actor", "", "Invoking member ID")
	invokeCmd.Flags().String("actor-name", "", "Invoking member display name")
	invokeCmd.Flags().Bool("admin", false, "Invoke with the admin role")
	invokeCmd.Flags().String("target", "", "Target member ID")
	invokeCmd.Flags().String("target-name", "", "Target member display name")
	invokeCmd.Flags().StringArray("arg", nil, "Command argument as key=value (repeatable)")
	_ = invokeCmd.MarkFlagRequired("actor")
}

// ─── invoke ─────────────────────────────────────────────────────────────────

var invokeCmd = &cobra.Command{
	Use:   "invoke VARIANT COMMAND",
	Short: "Run a bot command locally",
	Long: `Run one command of the points or bank bot against the local database,
as if it had been issued in chat. Useful for administration and scripting.

  moose invoke points give --actor 1 --admin --target 42 --arg amount=100
  moose invoke bank statement --actor 42 --arg window=month`,
	Args: cobra.ExactArgs(2),
	RunE: runInvoke,
}

func runInvoke(cmd *cobra.Command, args []string) error {
	inv, err := invocationFromFlags(cmd, args[1])
	if err != nil {
		return err
	}

	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	disp := d.Dispatcher(args[0])
	if disp == nil {
		return fmt.Errorf("variant %q is unknown or disabled (use %q or %q)", args[0], dispatch.VariantPoints, dispatch.VariantBank)
	}
	reply := disp.Dispatch(cmd.Context(), inv)
	printReply(cmd.OutOrStdout(), reply)
	if reply.Error != "" {
		return fmt.Errorf("command rejected: %s", reply.Error)
	}
	return nil
}

func invocationFromFlags(cmd *cobra.Command, command string) (dispatch.Invocation, error) {
	actor, _ := cmd.Flags().GetString("actor")
	actorName, _ := cmd.Flags().GetString("actor-name")
	admin, _ := cmd.Flags().GetBool("admin")
	target, _ := cmd.Flags().GetString("target")
	targetName, _ := cmd.Flags().GetString("target-name")
	pairs, _ := cmd.Flags().GetStringArray("arg")

	kv, err := parseArgPairs(pairs)
	if err != nil {
		return dispatch.Invocation{}, err
	}
	if actorName == "" {
		actorName = actor
	}
	return dispatch.Invocation{
		Command:      command,
		Args:         kv,
		ActorID:      actor,
		ActorName:    actorName,
		HasAdminRole: admin,
		TargetID:     target,
		TargetName:   targetName,
	}, nil
}

// parseArgPairs turns key=value flags into an argument map.
func parseArgPairs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("argument %q must be key=value", p)
		}
		out[k] = v
	}
	return out, nil
}

func printReply(w io.Writer, r dispatch.Reply) {
	if r.Text != "" {
		fmt.Fprintln(w, r.Text)
	}
	if r.Embed != nil {
		fmt.Fprintf(w, "── %s ──\n", r.Embed.Title)
		if r.Embed.Description != "" {
			fmt.Fprintln(w, r.Embed.Description)
		}
		for _, f := range r.Embed.Fields {
			fmt.Fprintf(w, "\n%s\n%s\n", f.Name, f.Value)
		}
		if r.Embed.Footer != "" {
			fmt.Fprintf(w, "\n%s\n", r.Embed.Footer)
		}
	}
}

// ─── commands ───────────────────────────────────────────────────────────────

var commandsCmd = &cobra.Command{
	Use:   "commands VARIANT",
	Short: "List the commands of a bot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon()
		if err != nil {
			return err
		}
		defer d.Close()

		disp := d.Dispatcher(args[0])
		if disp == nil {
			return fmt.Errorf("variant %q is unknown or disabled", args[0])
		}
		printCommands(cmd.OutOrStdout(), disp.Commands())
		return nil
	},
}

func printCommands(w io.Writer, cmds []dispatch.Command) {
	for _, c := range cmds {
		names := make([]string, 0, len(c.Args))
		for _, a := range c.Args {
			if a.Optional {
				names = append(names, "["+a.Name+"]")
			} else {
				names = append(names, a.Name)
			}
		}
		target := ""
		if c.NeedsTarget {
			target = " @member"
		}
		fmt.Fprintf(w, "  %-16s %-8s %s%s %s\n", c.Name, c.Access, c.Description, target, strings.Join(names, " "))
	}
}

// ─── config ─────────────────────────────────────────────────────────────────

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as TOML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return cfg.Encode(cmd.OutOrStdout())
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = daemon.ConfigPath()
		}
		if err := daemon.SaveConfig(path, daemon.DefaultConfig()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
}
