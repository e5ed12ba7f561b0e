// ABOUTME: MCP server subcommand
// ABOUTME: Starts the MCP stdio server exposing sync, status, contact and group tools
package cli

import (
	"database/sql"

	"github.com/harperreed/gappsync/handlers"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

// NewMCPCommand creates the mcp command.
func NewMCPCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the sync tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := opts.openDatabase()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			opts.logger().Info("starting MCP server", "db", opts.DBPath)
			server := newMCPServer(opts, cmd.Root().Version, database)
			return server.Run(cmd.Context(), &mcp.StdioTransport{})
		},
	}
}

func newMCPServer(opts *RootOptions, version string, database *sql.DB) *mcp.Server {
	syncHandlers := handlers.NewSyncHandlers(database, opts.newJob(database))
	contactHandlers := handlers.NewContactHandlers(database)
	groupHandlers := handlers.NewGroupHandlers(database)
	resourceHandlers := handlers.NewResourceHandlers(database)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "gappsync",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "googleapps_sync",
		Description: "Push the configured CRM group to the Google Apps directory (one budgeted pass)",
	}, syncHandlers.GoogleappsSync)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "googleapps_status",
		Description: "Show sync configuration, counters and recent job results",
	}, syncHandlers.GoogleappsStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_contact",
		Description: "Add a new contact to the CRM, optionally into a group",
	}, contactHandlers.AddContact)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_contacts",
		Description: "Search for contacts by name or employer",
	}, contactHandlers.FindContacts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_contact",
		Description: "Update an existing contact's information",
	}, contactHandlers.UpdateContact)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_contact",
		Description: "Move a contact to the trash; the next sync removes it from the directory",
	}, contactHandlers.DeleteContact)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_group",
		Description: "Create a static group, or a smart group from employer, job title or email domain",
	}, groupHandlers.AddGroup)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_group_member",
		Description: "Add a contact to a group",
	}, groupHandlers.AddGroupMember)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "remove_group_member",
		Description: "Remove a contact from a group, also excluding it from smart criteria",
	}, groupHandlers.RemoveGroupMember)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_groups",
		Description: "List CRM groups",
	}, groupHandlers.ListGroups)

	for _, resource := range resourceHandlers.Resources() {
		server.AddResource(resource, resourceHandlers.ReadResource)
	}

	return server
}
