package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teemow/zoombulk/internal/logging"
	"github.com/teemow/zoombulk/internal/zoom"
)

type createMeetingFlags struct {
	hostID    string
	hostEmail string
	topic     string
	agenda    string
	startTime string
	duration  int
	timezone  string
	params    []string
}

func newCreateMeetingCmd() *cobra.Command {
	var flags createMeetingFlags

	cmd := &cobra.Command{
		Use:   "create-meeting",
		Short: "Create a single meeting",
		Long: `Create a single meeting and print the API response as JSON.

The host is --host-id, else the user with --host-email, else the
credential's own user. Any other create meeting parameter can be given with
--param name=value; JSON values are accepted for settings, recurrence and
tracking_fields.`,
		Example: `  zoombulk create-meeting --host-email jane@example.com --topic "Weekly sync" \
    --start-time 2024-05-01T09:30:00 --duration 45 --timezone Europe/Berlin \
    --param 'settings={"waiting_room":true}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCreateMeeting(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.hostID, "host-id", "", "User ID of the host")
	cmd.Flags().StringVar(&flags.hostEmail, "host-email", "", "Email of the host, resolved to a user ID")
	cmd.Flags().StringVar(&flags.topic, "topic", "", "Meeting topic (default: "+zoom.DefaultTopic+")")
	cmd.Flags().StringVar(&flags.agenda, "agenda", "", "Meeting description")
	cmd.Flags().StringVar(&flags.startTime, "start-time", "", "Local start time, e.g. 2024-05-01T09:30:00")
	cmd.Flags().IntVar(&flags.duration, "duration", 0, "Duration in minutes")
	cmd.Flags().StringVar(&flags.timezone, "timezone", "", "Timezone of the start time (default: ZOOM_DEFAULT_TIMEZONE)")
	cmd.Flags().StringArrayVar(&flags.params, "param", nil, "Additional parameter as name=value (repeatable)")

	return cmd
}

func runCreateMeeting(ctx context.Context, out io.Writer, flags createMeetingFlags) error {
	params, err := meetingParams(flags)
	if err != nil {
		return err
	}
	if params.Empty("timezone") {
		params["timezone"] = cfg.DefaultTimezone
	}

	a, err := newApp(ctx, cfg, logger, appOptions{api: true})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown failed", logging.Err(err))
		}
	}()

	userID := params.String(zoom.ParamHostID)
	if userID == "" {
		if email := params.String(zoom.ParamHostEmail); email != "" {
			if userID, err = a.index.Resolve(ctx, email); err != nil {
				return err
			}
		}
	}

	meeting, err := a.client.CreateMeeting(ctx, userID, params)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(meeting.Raw)
}

// meetingParams builds create meeting parameters from the flags. Named
// flags win over --param values.
func meetingParams(flags createMeetingFlags) (zoom.Params, error) {
	params, err := parseParams(flags.params)
	if err != nil {
		return nil, err
	}

	set := func(name, value string) {
		if value != "" {
			params[name] = value
		}
	}
	set(zoom.ParamHostID, flags.hostID)
	set(zoom.ParamHostEmail, flags.hostEmail)
	set("topic", flags.topic)
	set("agenda", flags.agenda)
	set("start_time", flags.startTime)
	set("timezone", flags.timezone)
	if flags.duration > 0 {
		params["duration"] = flags.duration
	}
	return params, nil
}

// parseParams parses name=value pairs into parameters.
func parseParams(pairs []string) (zoom.Params, error) {
	params := make(zoom.Params, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected name=value", pair)
		}
		if !zoom.IsCreateMeetingParam(name) {
			return nil, fmt.Errorf("unknown create meeting parameter %q", name)
		}
		params[name] = value
	}
	return params, nil
}

// formatParams renders parameters as sorted name=value pairs.
func formatParams(params zoom.Params) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	slices.Sort(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%q", name, params.String(name))
	}
	return strings.Join(parts, " ")
}
