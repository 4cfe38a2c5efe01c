package main

import (
	"fmt"
	"net"

	"github.com/MichaelRitzert/epics-base/ca"
	"github.com/spf13/cobra"
)

func searchCmd() *cobra.Command {
	var dump bool

	cmd := &cobra.Command{
		Use:   "search <channel>...",
		Short: "Broadcast name resolution requests",
		Long: `Batch search requests for the named channels into datagrams and send
them to every configured destination (addr_list plus discovered
broadcast addresses). With --dump the datagram bytes go to stdout
instead of the network.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := ca.NewChannelRegistry()
			if dump {
				build := func(q *ca.SendQueue) error {
					if err := q.VersionRequest(0); err != nil {
						return err
					}
					for _, name := range args {
						ch := reg.Create(name)
						if err := q.SearchRequest(ch.Name, ch.CID, false); err != nil {
							return err
						}
					}
					return nil
				}
				return dumpMessage(cmd, build)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dests, err := cfg.SearchDestinations()
			if err != nil {
				return err
			}
			pc, err := net.ListenPacket("udp4", ":0")
			if err != nil {
				return err
			}
			defer pc.Close()

			w, err := ca.NewSearchWriter(pc, dests, ca.WithLogger(ca.NewLogger("cawire")))
			if err != nil {
				return err
			}
			for _, name := range args {
				ch := reg.Create(name)
				if err := w.Search(ch.Name, ch.CID); err != nil {
					return err
				}
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "searched %d channels via %d destinations\n", reg.Len(), len(dests))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dump, "dump", false, "hex-dump the requests instead of sending")

	return cmd
}
