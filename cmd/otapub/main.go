// otapub is the operator CLI: it publishes bundles and manages channels,
// rollout rules and directives on a running update server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"otacast/pkg/client"
	"otacast/pkg/models"
)

const (
	defaultServerURL   = "http://127.0.0.1:8080"
	defaultHTTPTimeout = 2 * time.Minute
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	command := os.Args[1]
	args := os.Args[2:]

	ctx := context.Background()
	if err := run(ctx, command, args); err != nil {
		fmt.Fprintf(os.Stderr, "otapub %s failed: %v\n", command, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: otapub <command> [flags]

Commands:
  channel-create   Create a channel and print its key
  channel-key      Regenerate a channel key
  channel-sign     Enable manifest signing for a channel
  channel-enable   Enable or disable a channel
  channel-delete   Soft-delete a channel
  publish          Publish a zip bundle to a channel
  rollout          Set the staged rollout percentage of an update
  enable           Enable or disable an update
  rule-add         Attach a rollout rule to an update
  rule-list        List rules of an update
  rule-delete      Delete a rule
  rollback         Create a rollBackToEmbedded directive
  directive-list   List directives of a channel
  directive-off    Deactivate a directive

Run 'otapub <command> -h' for command flags.`)
}

func run(ctx context.Context, command string, args []string) error {
	flags := flag.NewFlagSet(command, flag.ExitOnError)
	serverURL := flags.String("server", defaultServerURL, "Update server base URL")
	timeout := flags.Duration("http-timeout", defaultHTTPTimeout, "HTTP client timeout")

	switch command {
	case "channel-create":
		project := flags.String("project", "", "Project name")
		name := flags.String("name", "", "Channel name")
		parseFlags(flags, args)
		cli := client.New(*serverURL, *timeout)

		channel, err := cli.CreateChannel(ctx, *project, *name)
		if err != nil {
			return err
		}
		fmt.Printf("channel %q created\nkey: %s\n", channel.Name, channel.Key)
		return nil

	case "channel-key":
		key := flags.String("channel", "", "Current channel key")
		parseFlags(flags, args)
		cli := client.New(*serverURL, *timeout)

		newKey, err := cli.RegenerateKey(ctx, *key)
		if err != nil {
			return err
		}
		fmt.Printf("new key: %s\n(the old key is no longer valid)\n", newKey)
		return nil

	case "channel-sign":
		key := flags.String("channel", "", "Channel key")
		parseFlags(flags, args)
		cli := client.New(*serverURL, *timeout)

		publicKey, err := cli.EnableSigning(ctx, *key)
		if err != nil {
			return err
		}
		fmt.Printf("signing enabled, embed this public key in the app:\n%s", publicKey)
		return nil

	case "channel-enable":
		key := flags.String("channel", "", "Channel key")
		enabled := flags.Bool("on", true, "Enable (true) or disable (false)")
		parseFlags(flags, args)
		cli := client.New(*serverURL, *timeout)

		if err := cli.SetChannelEnabled(ctx, *key, *enabled); err != nil {
			return err
		}
		fmt.Printf("channel enabled=%v\n", *enabled)
		return nil

	case "channel-delete":
		key := flags.String("channel", "", "Channel key")
		parseFlags(flags, args)
		cli := client.New(*serverURL, *timeout)

		if err := cli.DeleteChannel(ctx, *key); err != nil {
			return err
		}
		fmt.Println("channel deleted")
		return nil

	case "publish":
		key := flags.String("channel", "", "Channel key")
		runtimeVersion := flags.String("runtime", "", "Runtime version")
		rollout := flags.Int("rollout", 100, "Initial rollout percentage")
		metadataJSON := flags.String("metadata", "", "Flat JSON string map attached to the update")
		bundlePath := flags.String("bundle", "", "Path to the zip bundle")
		parseFlags(flags, args)
		cli := client.New(*serverURL, *timeout)

		var metadata map[string]string
		if *metadataJSON != "" {
			if err := json.Unmarshal([]byte(*metadataJSON), &metadata); err != nil {
				return fmt.Errorf("metadata must be a flat JSON string map: %w", err)
			}
		}

		bundle, err := os.ReadFile(*bundlePath)
		if err != nil {
			return err
		}

		upd, err := cli.PublishBundle(ctx, client.PublishParams{
			ChannelKey:        *key,
			RuntimeVersion:    *runtimeVersion,
			RolloutPercentage: *rollout,
			Metadata:          metadata,
		}, bundle)
		if err != nil {
			return err
		}
		fmt.Printf("published update %s (runtime %s, %s uploaded, rollout %d%%)\n",
			upd.ID, upd.RuntimeVersion, humanize.Bytes(uint64(len(bundle))), upd.RolloutPercentage)
		return nil

	case "rollout":
		updateID := flags.String("update", "", "Update id")
		percentage := flags.Int("percent", 100, "Rollout percentage")
		parseFlags(flags, args)
		cli := client.New(*serverURL, *timeout)

		if err := cli.SetRollout(ctx, *updateID, *percentage); err != nil {
			return err
		}
		fmt.Printf("update %s rollout set to %d%%\n", *updateID, *percentage)
		return nil

	case "enable":
		updateID := flags.String("update", "", "Update id")
		enabled := flags.Bool("on", true, "Enable (true) or disable (false)")
		parseFlags(flags, args)
		cli := client.New(*serverURL, *timeout)

		if err := cli.SetEnabled(ctx, *updateID, *enabled); err != nil {
			return err
		}
		fmt.Printf("update %s enabled=%v\n", *updateID, *enabled)
		return nil

	case "rule-add":
		updateID := flags.String("update", "", "Update id")
		ruleType := flags.String("type", models.RuleTypePercentage, "Rule type (percentage or device_id)")
		percentage := flags.Int("percent", 0, "Percentage for percentage rules")
		devices := flags.String("devices", "", "Comma-separated device ids for device_id rules")
		priority := flags.Int("priority", 0, "Rule priority, higher evaluates first")
		parseFlags(flags, args)
		cli := client.New(*serverURL, *timeout)

		value := models.RuleValue{Percentage: *percentage}
		if *devices != "" {
			value.Include = splitCommas(*devices)
		}

		rule, err := cli.CreateRule(ctx, *updateID, *ruleType, value, *priority)
		if err != nil {
			return err
		}
		fmt.Printf("rule %d (%s, priority %d) attached to %s\n", rule.ID, rule.Type, rule.Priority, *updateID)
		return nil

	case "rule-list":
		updateID := flags.String("update", "", "Update id")
		parseFlags(flags, args)
		cli := client.New(*serverURL, *timeout)

		rules, err := cli.ListRules(ctx, *updateID)
		if err != nil {
			return err
		}
		for _, rule := range rules {
			fmt.Printf("%d\t%s\tpriority=%d\tenabled=%v\n", rule.ID, rule.Type, rule.Priority, rule.IsEnabled)
		}
		return nil

	case "rule-delete":
		ruleID := flags.Int64("rule", 0, "Rule id")
		parseFlags(flags, args)
		cli := client.New(*serverURL, *timeout)

		if err := cli.DeleteRule(ctx, *ruleID); err != nil {
			return err
		}
		fmt.Printf("rule %d deleted\n", *ruleID)
		return nil

	case "rollback":
		key := flags.String("channel", "", "Channel key")
		runtimeVersion := flags.String("runtime", "", "Runtime version")
		reason := flags.String("reason", "", "Optional rollback reason")
		expiresIn := flags.Duration("expires-in", 0, "Optional directive lifetime (0 = never expires)")
		parseFlags(flags, args)
		cli := client.New(*serverURL, *timeout)

		params := client.DirectiveParams{
			ChannelKey:     *key,
			RuntimeVersion: *runtimeVersion,
			Type:           models.DirectiveRollBackToEmbedded,
		}
		if *reason != "" {
			params.Parameters = map[string]string{"reason": *reason}
		}
		if *expiresIn > 0 {
			expiresAt := time.Now().UTC().Add(*expiresIn)
			params.ExpiresAt = &expiresAt
		}

		directive, err := cli.CreateDirective(ctx, params)
		if err != nil {
			return err
		}
		fmt.Printf("rollback directive %d active for runtime %s\n", directive.ID, *runtimeVersion)
		return nil

	case "directive-list":
		key := flags.String("channel", "", "Channel key")
		parseFlags(flags, args)
		cli := client.New(*serverURL, *timeout)

		directives, err := cli.ListDirectives(ctx, *key)
		if err != nil {
			return err
		}
		for _, directive := range directives {
			expires := "never"
			if directive.ExpiresAt != nil {
				expires = directive.ExpiresAt.Format(time.RFC3339)
			}
			fmt.Printf("%d\t%s\truntime=%s\tactive=%v\texpires=%s\n",
				directive.ID, directive.Type, directive.RuntimeVersion, directive.IsActive, expires)
		}
		return nil

	case "directive-off":
		directiveID := flags.Int64("directive", 0, "Directive id")
		parseFlags(flags, args)
		cli := client.New(*serverURL, *timeout)

		if err := cli.DeactivateDirective(ctx, *directiveID); err != nil {
			return err
		}
		fmt.Printf("directive %d deactivated\n", *directiveID)
		return nil

	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func parseFlags(flags *flag.FlagSet, args []string) {
	// ExitOnError makes a parse failure terminal.
	_ = flags.Parse(args)
}

func splitCommas(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
