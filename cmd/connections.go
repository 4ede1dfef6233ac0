package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/HaiFongPan/ducktransfer/internal/connector"
)

var newConnection struct {
	protocol  string
	host      string
	port      int
	user      string
	password  string
	askPass   bool
	tls       bool
	accessKey string
	secretKey string
	region    string
	bucket    string
	endpoint  string
}

// connectionsCmd groups the saved-connection subcommands
var connectionsCmd = &cobra.Command{
	Use:     "connections",
	Aliases: []string{"conn"},
	Short:   "Manage saved connections",
}

var connectionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved connections",
	Args:  cobra.NoArgs,
	RunE:  listConnections,
}

var connectionsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Save a connection, replacing one with the same name",
	Long: `Save a connection under a name.

Examples:
  ducktransfer connections add lab --protocol sftp --host lab.local --user alice --password secret
  ducktransfer connections add lab --protocol sftp --host lab.local --user alice --ask-password
  ducktransfer connections add mirror --protocol ftp --host ftp.example.org
  ducktransfer connections add secure --protocol ftps --host ftp.example.org --user bob
  ducktransfer connections add backup --protocol s3 --bucket backups --region eu-west-1
  ducktransfer connections add minio --protocol s3 --bucket media --endpoint http://localhost:9000`,
	Args: cobra.ExactArgs(1),
	RunE: addConnection,
}

var connectionsRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a saved connection",
	Args:    cobra.ExactArgs(1),
	RunE:    removeConnection,
}

func init() {
	rootCmd.AddCommand(connectionsCmd)
	connectionsCmd.AddCommand(connectionsListCmd, connectionsAddCmd, connectionsRemoveCmd)

	f := connectionsAddCmd.Flags()
	f.StringVarP(&newConnection.protocol, "protocol", "p", "", "ftp, ftps, sftp or s3")
	f.StringVar(&newConnection.host, "host", "", "server host name (ftp, ftps, sftp)")
	f.IntVar(&newConnection.port, "port", 0, "server port (default 21 for ftp/ftps, 22 for sftp)")
	f.StringVarP(&newConnection.user, "user", "u", "", "user name (ftp defaults to anonymous)")
	f.StringVar(&newConnection.password, "password", "", "password")
	f.BoolVar(&newConnection.askPass, "ask-password", false, "prompt for the password (or S3 secret key) without echo")
	f.BoolVar(&newConnection.tls, "tls", false, "use explicit TLS (same as --protocol ftps)")
	f.StringVar(&newConnection.accessKey, "access-key", "", "S3 access key (default credential chain when empty)")
	f.StringVar(&newConnection.secretKey, "secret-key", "", "S3 secret key")
	f.StringVar(&newConnection.region, "region", "", "S3 region (default us-east-1)")
	f.StringVar(&newConnection.bucket, "bucket", "", "S3 bucket")
	f.StringVar(&newConnection.endpoint, "endpoint", "", "S3-compatible endpoint URL")
	connectionsAddCmd.MarkFlagRequired("protocol")
}

// buildConnectionConfig turns the add flags into a validated configuration
func buildConnectionConfig(name string) (connector.Config, error) {
	protocol, err := connector.ParseProtocol(newConnection.protocol)
	if err != nil {
		return connector.Config{}, err
	}
	if newConnection.tls && protocol == connector.ProtocolFTP {
		protocol = connector.ProtocolFTPS
	}

	cfg := connector.Config{
		Name:      name,
		Protocol:  protocol,
		Host:      newConnection.host,
		Port:      newConnection.port,
		Username:  newConnection.user,
		Password:  newConnection.password,
		UseTLS:    protocol == connector.ProtocolFTPS,
		AccessKey: newConnection.accessKey,
		SecretKey: newConnection.secretKey,
		Region:    newConnection.region,
		Bucket:    newConnection.bucket,
		Endpoint:  newConnection.endpoint,
	}
	if err := cfg.Validate(); err != nil {
		return connector.Config{}, fmt.Errorf("invalid connection %q: %w", name, err)
	}
	return cfg, nil
}

func addConnection(cmd *cobra.Command, args []string) error {
	if newConnection.askPass {
		if err := promptSecret(); err != nil {
			return err
		}
	}
	cfg, err := buildConnectionConfig(args[0])
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Add(cfg); err != nil {
		return fmt.Errorf("failed to save connection: %w", err)
	}
	logrus.Infof("Saved connection %s (%s)", cfg.Name, cfg.Address())
	fmt.Printf("Saved connection %s (%s %s)\n", cfg.Name, cfg.Protocol, cfg.Address())
	return nil
}

// promptSecret reads the password, or the S3 secret key, from the terminal
// without echoing it.
func promptSecret() error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("--ask-password needs an interactive terminal")
	}
	target, label := &newConnection.password, "Password"
	if p, err := connector.ParseProtocol(newConnection.protocol); err == nil && p == connector.ProtocolS3 {
		target, label = &newConnection.secretKey, "Secret key"
	}

	fmt.Fprintf(os.Stderr, "%s: ", label)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	*target = string(secret)
	return nil
}

func removeConnection(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Remove(args[0]); err != nil {
		return fmt.Errorf("failed to remove %q: %w", args[0], err)
	}
	fmt.Printf("Removed connection %s\n", args[0])
	return nil
}

func listConnections(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	configs, err := st.Load()
	if err != nil {
		return fmt.Errorf("failed to load connections: %w", err)
	}
	if len(configs) == 0 {
		fmt.Println("No saved connections. Add one with 'ducktransfer connections add'.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPROTOCOL\tADDRESS\tUSER")
	for _, c := range configs {
		user := c.Username
		if c.Protocol == connector.ProtocolS3 {
			user = c.AccessKey
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Name, c.Protocol, c.Address(), user)
	}
	return w.Flush()
}
