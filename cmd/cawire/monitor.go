package main

import (
	"fmt"
	"strings"

	"github.com/MichaelRitzert/epics-base/ca"
	"github.com/spf13/cobra"
)

var masksByName = map[string]ca.EventMask{
	"value":    ca.MaskValue,
	"log":      ca.MaskLog,
	"alarm":    ca.MaskAlarm,
	"property": ca.MaskProperty,
}

func monitorCmd() *cobra.Command {
	var (
		typeName string
		count    uint32
		sid      uint32
		ioid     uint32
		masks    []string
		cancel   bool
	)

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Assemble a subscription request and show its wire image",
		Long: `Assemble a CA_PROTO_EVENT_ADD request (or, with --cancel, the matching
CA_PROTO_EVENT_CANCEL) and hex-dump the exact bytes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ok := lookupReadType(typeName)
			if !ok {
				return fmt.Errorf("unknown type %q", typeName)
			}
			var mask ca.EventMask
			for _, m := range masks {
				bit, ok := masksByName[strings.ToLower(m)]
				if !ok {
					return fmt.Errorf("unknown event mask %q", m)
				}
				mask |= bit
			}
			return dumpMessage(cmd, func(q *ca.SendQueue) error {
				if cancel {
					return q.EventCancelRequest(t, count, sid, ioid, true)
				}
				return q.SubscriptionRequest(t, count, sid, ioid, mask, true)
			})
		},
	}

	cmd.Flags().StringVarP(&typeName, "type", "t", "double", "DBR value type to subscribe as")
	cmd.Flags().Uint32VarP(&count, "count", "c", 1, "element count, 0 for the server's native count")
	cmd.Flags().Uint32Var(&sid, "sid", 1, "server channel id to address")
	cmd.Flags().Uint32Var(&ioid, "ioid", 1, "subscription id")
	cmd.Flags().StringSliceVarP(&masks, "mask", "m", []string{"value", "alarm"}, "event mask bits (value, log, alarm, property)")
	cmd.Flags().BoolVar(&cancel, "cancel", false, "emit the cancel request instead")

	return cmd
}
