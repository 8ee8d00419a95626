package cli

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/BradenHooton/csm/internal/models"
)

// Command names
const (
	CmdSetup         = "setup"
	CmdSupportBundle = "support_bundle"
	CmdEmail         = "email"
	CmdAlerts        = "alerts"
	CmdUsers         = "users"
	CmdAuditLog      = "auditlog"
)

type optionDef struct {
	flag   string
	dest   string
	usage  string
	value  string
	isBool bool
	// choices restricts the accepted values when set
	choices []string
}

type commandDef struct {
	name     string
	help     string
	actions  []string
	options  []optionDef
	methods  map[string]string
	argSpecs map[string][]ArgSpec
	headers  map[string][]Column
	filters  map[string]string
	resource string
	local    bool
	route    func(c *Command) (string, url.Values, any)
}

var formatOption = optionDef{flag: "f", dest: "format", usage: "Format", value: FormatTable, choices: []string{FormatJSON, FormatXML, FormatTable}}

var alertColumns = []Column{
	{"alert_id", "Alert Id"},
	{"created_time", "Timestamp"},
	{"severity", "Severity"},
	{"module", "Module"},
	{"resource", "Resource"},
	{"description", "Description"},
	{"acknowledged", "Acknowledged"},
	{"resolved", "Resolved"},
}

var userColumns = []Column{
	{"username", "Username"},
	{"user_type", "User Type"},
	{"roles", "Roles"},
	{"interfaces", "Interfaces"},
	{"created_time", "Created Time"},
	{"updated_time", "Updated Time"},
}

var bundleColumns = []Column{
	{"bundle_id", "Bundle Id"},
	{"comment", "Comment"},
	{"status", "Status"},
	{"location", "Location"},
	{"created_time", "Created Time"},
}

var emailColumns = []Column{
	{"sender", "Sender"},
	{"subscribers", "Subscribers"},
	{"weekly_report", "Weekly Report"},
}

const apiPrefix = "/api/v1"

func escape(s string) string { return url.PathEscape(s) }

var commandDefs = map[string]commandDef{
	CmdSetup: {
		name:    CmdSetup,
		help:    "Setup csm.",
		actions: []string{"init", "migrate", "reset"},
		options: []optionDef{{flag: "f", dest: "force", usage: "force", isBool: true}},
		local:   true,
	},
	CmdSupportBundle: {
		name:     CmdSupportBundle,
		help:     "Create, list or delete support bundle.",
		actions:  []string{"create", "list", "delete"},
		options:  []optionDef{formatOption},
		methods:  map[string]string{"create": http.MethodPost, "delete": http.MethodDelete},
		argSpecs: map[string][]ArgSpec{"delete": {{"bundle_id", ArgStr}}},
		headers:  map[string][]Column{"create": bundleColumns, "list": bundleColumns},
		filters:  map[string]string{"list": "support_bundles"},
		resource: models.PermSupportBundle,
		route: func(c *Command) (string, url.Values, any) {
			switch c.Action {
			case "create":
				return apiPrefix + "/support_bundle", nil, map[string]string{"comment": strings.Join(c.Args, " ")}
			case "delete":
				return apiPrefix + "/support_bundle/" + escape(c.arg(0)), nil, nil
			}
			return apiPrefix + "/support_bundle", nil, nil
		},
	},
	CmdEmail: {
		name:    CmdEmail,
		help:    "Perform | reset email configuration, show, subscribe or unsubscribe for email alerts.",
		actions: []string{"config", "reset", "show", "subscribe", "unsubscribe", "test"},
		options: []optionDef{
			formatOption,
			{flag: "w", dest: "weekly_report", usage: "Send weekly report", isBool: true},
		},
		methods: map[string]string{
			"config":      http.MethodPut,
			"reset":       http.MethodDelete,
			"subscribe":   http.MethodPost,
			"unsubscribe": http.MethodPost,
			"test":        http.MethodPost,
		},
		argSpecs: map[string][]ArgSpec{
			"config":      {{"sender", ArgStr}},
			"subscribe":   {{"address", ArgStr}},
			"unsubscribe": {{"address", ArgStr}},
		},
		headers: map[string][]Column{
			"config": emailColumns, "show": emailColumns,
			"subscribe": emailColumns, "unsubscribe": emailColumns,
		},
		resource: models.PermEmail,
		route: func(c *Command) (string, url.Values, any) {
			switch c.Action {
			case "config":
				return apiPrefix + "/email/config", nil, map[string]any{
					"sender":        c.arg(0),
					"weekly_report": c.Options["weekly_report"] == "true",
				}
			case "subscribe", "unsubscribe":
				return apiPrefix + "/email/" + c.Action, nil, map[string]string{"address": c.arg(0)}
			case "test":
				return apiPrefix + "/email/test", nil, nil
			}
			return apiPrefix + "/email/config", nil, nil
		},
	},
	CmdAlerts: {
		name:    CmdAlerts,
		help:    "Show | Acknowledge system alerts",
		actions: []string{"show", "acknowledge"},
		options: []optionDef{
			{flag: "d", dest: "duration", usage: "Seconds", value: "60s"},
			{flag: "c", dest: "limit", usage: "No. of Alerts", value: "1000"},
			{flag: "a", dest: "all", usage: "Display All Alerts", isBool: true},
			formatOption,
		},
		methods:  map[string]string{"show": http.MethodGet, "acknowledge": http.MethodPatch},
		argSpecs: map[string][]ArgSpec{"acknowledge": {{"id", ArgInt}, {"comment", ArgStr}}},
		headers:  map[string][]Column{"show": alertColumns},
		filters:  map[string]string{"show": "alerts"},
		resource: models.PermAlerts,
		route: func(c *Command) (string, url.Values, any) {
			if c.Action == "acknowledge" {
				return apiPrefix + "/alerts/" + escape(c.arg(0)), nil, map[string]string{"comment": c.arg(1)}
			}
			q := url.Values{}
			q.Set("duration", c.Options["duration"])
			q.Set("limit", c.Options["limit"])
			q.Set("all", boolOption(c, "all"))
			return apiPrefix + "/alerts", q, nil
		},
	},
	CmdUsers: {
		name:    CmdUsers,
		help:    "Show, create, delete or update CSM users",
		actions: []string{"show", "create", "delete", "update"},
		options: []optionDef{
			{flag: "r", dest: "roles", usage: "Comma separated roles"},
			{flag: "i", dest: "interfaces", usage: "Comma separated interfaces"},
			{flag: "s", dest: "sortby", usage: "Sort field"},
			{flag: "o", dest: "dir", usage: "Sort direction", choices: []string{"", "asc", "desc"}},
			{flag: "c", dest: "limit", usage: "No. of users"},
			{flag: "n", dest: "offset", usage: "Users to skip"},
			{flag: "p", dest: "change_password", usage: "Prompt for a new password", isBool: true},
			formatOption,
		},
		methods: map[string]string{
			"create": http.MethodPost,
			"delete": http.MethodDelete,
			"update": http.MethodPatch,
		},
		argSpecs: map[string][]ArgSpec{
			"create": {{"username", ArgStr}},
			"delete": {{"username", ArgStr}},
			"update": {{"username", ArgStr}},
		},
		headers:  map[string][]Column{"show": userColumns, "create": userColumns, "update": userColumns},
		filters:  map[string]string{"show": "users"},
		resource: models.PermUsers,
		route: func(c *Command) (string, url.Values, any) {
			switch c.Action {
			case "create":
				body := map[string]any{"user_id": c.arg(0), "password": c.Options["password"]}
				addListOptions(c, body)
				return apiPrefix + "/csm/users", nil, body
			case "delete":
				return apiPrefix + "/csm/users/" + escape(c.arg(0)), nil, nil
			case "update":
				body := map[string]any{}
				if pw := c.Options["password"]; pw != "" {
					body["password"] = pw
				}
				addListOptions(c, body)
				return apiPrefix + "/csm/users/" + escape(c.arg(0)), nil, body
			}
			q := url.Values{}
			for _, name := range []string{"limit", "offset", "sortby", "dir"} {
				if v := c.Options[name]; v != "" {
					q.Set(name, v)
				}
			}
			return apiPrefix + "/csm/users", q, nil
		},
	},
	CmdAuditLog: {
		name:    CmdAuditLog,
		help:    "Show or download audit logs",
		actions: []string{"show", "download"},
		options: []optionDef{formatOption},
		argSpecs: map[string][]ArgSpec{
			"show":     {{"component", ArgStr}, {"start_date", ArgInt}, {"end_date", ArgInt}},
			"download": {{"component", ArgStr}, {"start_date", ArgInt}, {"end_date", ArgInt}},
		},
		filters:  map[string]string{"show": "logs"},
		resource: models.PermAuditLog,
		route: func(c *Command) (string, url.Values, any) {
			q := url.Values{}
			q.Set("start_date", c.arg(1))
			q.Set("end_date", c.arg(2))
			return apiPrefix + "/auditlogs/" + c.Action + "/" + escape(c.arg(0)), q, nil
		},
	},
}

// CommandNames lists the supported commands in help order
var CommandNames = []string{CmdSetup, CmdSupportBundle, CmdEmail, CmdAlerts, CmdUsers, CmdAuditLog}

func boolOption(c *Command, name string) string {
	if c.Options[name] == "true" {
		return "true"
	}
	return "false"
}

func addListOptions(c *Command, body map[string]any) {
	if roles := c.list("roles"); roles != nil {
		body["roles"] = roles
	}
	if interfaces := c.list("interfaces"); interfaces != nil {
		body["interfaces"] = interfaces
	}
}

// optionValue is a string flag that refuses to swallow another flag or
// "--" as its value and, when choices is set, anything outside it
type optionValue struct {
	value   string
	choices []string
}

func (v *optionValue) String() string { return v.value }

func (v *optionValue) Type() string { return "string" }

func (v *optionValue) Set(s string) error {
	if strings.HasPrefix(s, "-") {
		return errors.New("flag needs an argument")
	}
	if v.choices != nil && !slices.Contains(v.choices, s) {
		return fmt.Errorf("expected one of: %s", strings.Join(v.choices, ", "))
	}
	v.value = s
	return nil
}

// actionArgs requires a leading action from ValidArgs; the rest are
// checked per action by Command.Validate
func actionArgs(def commandDef) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return models.InvalidRequest(models.KeyInvalidArgument, "an action is required for %q, one of: %s", def.name, strings.Join(def.actions, ", "))
		}
		if err := cobra.OnlyValidArgs(cmd, args[:1]); err != nil {
			return models.InvalidRequest(models.KeyInvalidArgument, "%v, expected one of: %s", err, strings.Join(def.actions, ", "))
		}
		return nil
	}
}

// newCommand builds the cobra command for def. A successful run stores the
// validated Command in *parsed.
func newCommand(def commandDef, parsed **Command) *cobra.Command {
	c := &cobra.Command{
		Use:       fmt.Sprintf("%s {%s} [args...]", def.name, strings.Join(def.actions, ",")),
		Short:     def.help,
		Long:      def.help,
		ValidArgs: def.actions,
		Args:      actionArgs(def),
	}

	strVals := map[string]*optionValue{}
	boolVals := map[string]*bool{}
	for _, o := range def.options {
		if o.isBool {
			boolVals[o.dest] = c.Flags().BoolP(o.dest, o.flag, false, o.usage)
			continue
		}
		v := &optionValue{value: o.value, choices: o.choices}
		c.Flags().VarP(v, o.dest, o.flag, o.usage)
		strVals[o.dest] = v
	}

	c.RunE = func(_ *cobra.Command, args []string) error {
		options := make(map[string]string, len(def.options))
		for dest, v := range strVals {
			options[dest] = v.value
		}
		for dest, v := range boolVals {
			options[dest] = strconv.FormatBool(*v)
		}

		action := args[0]
		cmd := &Command{
			Name:     def.name,
			Action:   action,
			Options:  options,
			Args:     args[1:],
			Local:    def.local,
			methods:  def.methods,
			argSpecs: def.argSpecs,
			headers:  def.headers[action],
			filter:   def.filters[action],
			resource: def.resource,
			route:    def.route,
		}
		if err := cmd.Validate(); err != nil {
			return err
		}
		*parsed = cmd
		return nil
	}
	return c
}

// Parse turns command line arguments into a validated Command. Flags may
// appear before, between or after the positional arguments and "--" ends
// them. A help request prints usage and returns pflag.ErrHelp.
func Parse(args []string, usage io.Writer) (*Command, error) {
	if len(args) == 0 {
		return nil, models.InvalidRequest(models.KeyInvalidArgument, "a command is required, one of: %s", strings.Join(CommandNames, ", "))
	}
	if _, ok := commandDefs[args[0]]; !ok {
		return nil, models.InvalidRequest(models.KeyInvalidArgument, "unknown command %q, expected one of: %s", args[0], strings.Join(CommandNames, ", "))
	}

	root := &cobra.Command{
		Use:           "csmcli",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(usage)
	root.SetErr(usage)

	var parsed *Command
	for _, name := range CommandNames {
		root.AddCommand(newCommand(commandDefs[name], &parsed))
	}

	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		var ce *models.CsmError
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, models.InvalidRequest(models.KeyInvalidArgument, "%v", err)
	}
	if parsed == nil {
		return nil, pflag.ErrHelp
	}
	return parsed, nil
}
