package main

import (
	"fmt"
	"strings"

	"github.com/MichaelRitzert/epics-base/ca"
	"github.com/spf13/cobra"
)

var basicTypesByName = map[string]ca.DBRType{
	"string": ca.DBRString,
	"short":  ca.DBRShort,
	"int":    ca.DBRInt,
	"float":  ca.DBRFloat,
	"enum":   ca.DBREnum,
	"char":   ca.DBRChar,
	"long":   ca.DBRLong,
	"double": ca.DBRDouble,
}

// lookupReadType resolves names like "double", "time_double" or "ctrl_enum",
// using the regular class layout of the type codes.
func lookupReadType(name string) (ca.DBRType, bool) {
	base := ca.DBRString
	rest := name
	for _, class := range []struct {
		prefix string
		base   ca.DBRType
	}{
		{"sts_", ca.DBRStsString},
		{"time_", ca.DBRTimeString},
		{"gr_", ca.DBRGrString},
		{"ctrl_", ca.DBRCtrlString},
	} {
		if strings.HasPrefix(name, class.prefix) {
			base = class.base
			rest = strings.TrimPrefix(name, class.prefix)
			break
		}
	}
	basic, ok := basicTypesByName[rest]
	if !ok {
		return 0, false
	}
	return base + basic, true
}

func getCmd() *cobra.Command {
	var (
		typeName string
		count    uint32
		sid      uint32
		ioid     uint32
	)

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Assemble a read request and show its wire image",
		Long: `Assemble a CA_PROTO_READ_NOTIFY request and hex-dump the exact bytes.
Any external type may be requested, the structured variants included.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ok := lookupReadType(typeName)
			if !ok {
				return fmt.Errorf("unknown type %q", typeName)
			}
			return dumpMessage(cmd, func(q *ca.SendQueue) error {
				return q.ReadNotifyRequest(t, count, sid, ioid, true)
			})
		},
	}

	cmd.Flags().StringVarP(&typeName, "type", "t", "time_double", "DBR type to read, e.g. double, time_double, ctrl_enum")
	cmd.Flags().Uint32VarP(&count, "count", "c", 0, "element count, 0 for the server's native count")
	cmd.Flags().Uint32Var(&sid, "sid", 1, "server channel id to address")
	cmd.Flags().Uint32Var(&ioid, "ioid", 1, "io id echoed by the reply")

	return cmd
}
