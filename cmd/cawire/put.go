package main

import (
	"encoding/hex"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/MichaelRitzert/epics-base/ca"
	"github.com/spf13/cobra"
)

var typesByName = map[string]ca.DBRType{
	"string":   ca.DBRString,
	"short":    ca.DBRShort,
	"int":      ca.DBRInt,
	"float":    ca.DBRFloat,
	"enum":     ca.DBREnum,
	"char":     ca.DBRChar,
	"long":     ca.DBRLong,
	"double":   ca.DBRDouble,
	"put_ackt": ca.DBRPutAckT,
	"put_acks": ca.DBRPutAckS,
}

func putCmd() *cobra.Command {
	var (
		typeName string
		sid      uint32
		ioid     uint32
		notify   bool
		send     string
	)

	cmd := &cobra.Command{
		Use:   "put <value>...",
		Short: "Assemble a write request and show or transmit its wire image",
		Long: `Assemble a CA_PROTO_WRITE (or, with --notify, CA_PROTO_WRITE_NOTIFY)
request carrying the given values and hex-dump the exact bytes. With
--send the request goes to a live circuit instead, preceded by the
usual version exchange.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ok := typesByName[typeName]
			if !ok {
				return fmt.Errorf("unknown type %q", typeName)
			}
			value, count, err := parseValues(t, args)
			if err != nil {
				return err
			}
			build := func(q *ca.SendQueue) error {
				if notify {
					return q.WriteNotifyRequest(t, count, sid, ioid, value, true)
				}
				return q.WriteRequest(t, count, sid, ioid, value, true)
			}
			if send == "" {
				return dumpMessage(cmd, build)
			}
			return transmit(send, build)
		},
	}

	cmd.Flags().StringVarP(&typeName, "type", "t", "double", "DBR value type (string, short, float, enum, char, long, double, put_ackt, put_acks)")
	cmd.Flags().Uint32Var(&sid, "sid", 1, "server channel id to address")
	cmd.Flags().Uint32Var(&ioid, "ioid", 1, "io id echoed by a write confirmation")
	cmd.Flags().BoolVarP(&notify, "notify", "n", false, "request a completion confirmation")
	cmd.Flags().StringVar(&send, "send", "", "transmit to host:port instead of dumping")

	return cmd
}

// parseValues converts command line arguments into the payload slice the
// copy table expects for t.
func parseValues(t ca.DBRType, args []string) (any, uint32, error) {
	n := uint32(len(args))
	switch t {
	case ca.DBRString:
		return args, n, nil
	case ca.DBRShort:
		v := make([]int16, len(args))
		for i, a := range args {
			x, err := strconv.ParseInt(a, 10, 16)
			if err != nil {
				return nil, 0, fmt.Errorf("value %q: %w", a, err)
			}
			v[i] = int16(x)
		}
		return v, n, nil
	case ca.DBREnum, ca.DBRPutAckT, ca.DBRPutAckS:
		v := make([]uint16, len(args))
		for i, a := range args {
			x, err := strconv.ParseUint(a, 10, 16)
			if err != nil {
				return nil, 0, fmt.Errorf("value %q: %w", a, err)
			}
			v[i] = uint16(x)
		}
		return v, n, nil
	case ca.DBRChar:
		v := make([]byte, len(args))
		for i, a := range args {
			x, err := strconv.ParseUint(a, 10, 8)
			if err != nil {
				return nil, 0, fmt.Errorf("value %q: %w", a, err)
			}
			v[i] = byte(x)
		}
		return v, n, nil
	case ca.DBRLong:
		v := make([]int32, len(args))
		for i, a := range args {
			x, err := strconv.ParseInt(a, 10, 32)
			if err != nil {
				return nil, 0, fmt.Errorf("value %q: %w", a, err)
			}
			v[i] = int32(x)
		}
		return v, n, nil
	case ca.DBRFloat:
		v := make([]float32, len(args))
		for i, a := range args {
			x, err := strconv.ParseFloat(a, 32)
			if err != nil {
				return nil, 0, fmt.Errorf("value %q: %w", a, err)
			}
			v[i] = float32(x)
		}
		return v, n, nil
	case ca.DBRDouble:
		v := make([]float64, len(args))
		for i, a := range args {
			x, err := strconv.ParseFloat(a, 64)
			if err != nil {
				return nil, 0, fmt.Errorf("value %q: %w", a, err)
			}
			v[i] = x
		}
		return v, n, nil
	}
	return nil, 0, fmt.Errorf("type %v cannot carry a request payload", t)
}

// dumpMessage builds one message in a local queue and hex-dumps its blocks.
func dumpMessage(cmd *cobra.Command, build func(*ca.SendQueue) error) error {
	q := ca.NewSendQueue(ca.NewBlockPool(0))
	q.BeginMsg()
	if err := build(q); err != nil {
		return err
	}
	q.CommitMsg()
	total := 0
	for {
		b, ok := q.PopBlock()
		if !ok {
			break
		}
		fmt.Fprint(cmd.OutOrStdout(), hex.Dump(b.Bytes()))
		total += b.OccupiedBytes()
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d bytes\n", total)
	return nil
}

// transmit sends one message over a freshly dialed circuit.
func transmit(target string, build func(*ca.SendQueue) error) error {
	nc, err := net.DialTimeout("tcp", target, 5*time.Second)
	if err != nil {
		return err
	}
	conn, err := ca.NewConn(nc, ca.WithLogger(ca.NewLogger("cawire")))
	if err != nil {
		nc.Close()
		return err
	}
	if err := conn.Send(build); err != nil {
		conn.Close()
		return err
	}
	return conn.Close()
}
