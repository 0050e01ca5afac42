package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arm-trusted-services/ts-core/internal/bootstrap"
	"github.com/arm-trusted-services/ts-core/internal/cli/output"
	"github.com/arm-trusted-services/ts-core/pkg/config"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/caller/direct"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/shmem"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/status"
	"github.com/arm-trusted-services/ts-core/pkg/rpc/uuid"
	"github.com/arm-trusted-services/ts-core/pkg/service/uefismm"
	"github.com/arm-trusted-services/ts-core/pkg/variable/efistatus"
	"github.com/arm-trusted-services/ts-core/pkg/variable/meta"
	"github.com/arm-trusted-services/ts-core/pkg/variable/storage"
	"github.com/arm-trusted-services/ts-core/pkg/variable/store"
)

var varsCmd = &cobra.Command{
	Use:   "vars",
	Short: "Inspect variables in a configured store",
}

var varsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every variable currently in the index",
	RunE:  runVarsList,
}

var dumpOutPath string
var restoreInPath string

var varsDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Write the active index slot's raw bytes to a file",
	Long: `Read whichever of the two index-commit slots is currently active
from the persistent storage backend and write its raw dump bytes to a
file, bypassing any running store.`,
	RunE: runVarsDump,
}

var varsRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Load a dump file back into the persistent storage backend",
	Long: `Write a previously dumped index back into slot A of the persistent
storage backend and remove slot B, so the next store Init sees an
unambiguous active slot.`,
	RunE: runVarsRestore,
}

func init() {
	varsDumpCmd.Flags().StringVar(&dumpOutPath, "out", "", "file to write the dump to (required)")
	varsDumpCmd.MarkFlagRequired("out")
	varsRestoreCmd.Flags().StringVar(&restoreInPath, "in", "", "dump file to restore (required)")
	varsRestoreCmd.MarkFlagRequired("in")

	varsCmd.AddCommand(varsListCmd, varsDumpCmd, varsRestoreCmd)
}

// loadActiveIndexSlot locates whichever of the two index-commit slots
// currently holds data and returns its raw bytes, mirroring
// pkg/variable/store's getActiveVariableUID for the case of exactly one
// slot present. When both slots hold data it returns an error instead of
// comparing their counters; the service keeps both slots once it has
// committed twice, so running it does not clear that case.
func loadActiveIndexSlot(ctx context.Context, backend storage.Backend, ownerID uint32) ([]byte, error) {
	infoA, statusA := backend.GetInfo(ctx, ownerID, store.IndexSlotAUID)
	infoB, statusB := backend.GetInfo(ctx, ownerID, store.IndexSlotBUID)
	aPresent := statusA == efistatus.PSASuccess && infoA.Size > 0
	bPresent := statusB == efistatus.PSASuccess && infoB.Size > 0

	var uid uint64
	switch {
	case aPresent && !bPresent:
		uid = store.IndexSlotAUID
	case !aPresent && bPresent:
		uid = store.IndexSlotBUID
	case !aPresent && !bPresent:
		return nil, fmt.Errorf("no committed index found (fresh store)")
	default:
		return nil, fmt.Errorf("both index slots are present; this command reads only a store with a single committed index slot")
	}

	info, _ := backend.GetInfo(ctx, ownerID, uid)
	buf := make([]byte, info.Size)
	n, getStatus := backend.Get(ctx, ownerID, uid, 0, buf)
	if getStatus != efistatus.PSASuccess {
		return nil, fmt.Errorf("read index slot: %s", efistatus.FromPSA(getStatus))
	}
	return buf[:n], nil
}

func runVarsDump(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	backend, closeBackend, err := bootstrap.PersistentBackend(cfg)
	if err != nil {
		return fmt.Errorf("open persistent storage: %w", err)
	}
	if closeBackend != nil {
		defer closeBackend()
	}

	data, err := loadActiveIndexSlot(ctx, backend, cfg.Owner.OwnerID)
	if err != nil {
		return err
	}

	if err := os.WriteFile(dumpOutPath, data, 0o600); err != nil {
		return fmt.Errorf("write dump file: %w", err)
	}
	fmt.Printf("Wrote %d bytes to %s\n", len(data), dumpOutPath)
	return nil
}

func runVarsRestore(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	data, err := os.ReadFile(restoreInPath)
	if err != nil {
		return fmt.Errorf("read dump file: %w", err)
	}

	backend, closeBackend, err := bootstrap.PersistentBackend(cfg)
	if err != nil {
		return fmt.Errorf("open persistent storage: %w", err)
	}
	if closeBackend != nil {
		defer closeBackend()
	}

	ownerID := cfg.Owner.OwnerID
	_ = backend.Remove(ctx, ownerID, store.IndexSlotBUID)
	_ = backend.Remove(ctx, ownerID, store.IndexSlotAUID)

	if createStatus := backend.Create(ctx, ownerID, store.IndexSlotAUID, len(data), storage.FlagNone); createStatus != efistatus.PSASuccess {
		return fmt.Errorf("create index slot: %s", efistatus.FromPSA(createStatus))
	}
	if setStatus := backend.SetExtended(ctx, ownerID, store.IndexSlotAUID, 0, data); setStatus != efistatus.PSASuccess {
		return fmt.Errorf("write index slot: %s", efistatus.FromPSA(setStatus))
	}

	fmt.Printf("Restored %d bytes into slot A\n", len(data))
	return nil
}

// openDirectCaller builds the full stack from the loaded config and
// opens an in-process session against its SMM_VARIABLE provider, bypassing
// the HTTP transport entirely: tsctl speaks directly to the same
// endpoint.ServiceInterface 'serve' would expose remotely.
func openDirectCaller(ctx context.Context) (*direct.Caller, *bootstrap.Stack, error) {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	stack, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("build stack: %w", err)
	}

	c := direct.New(stack.Provider)
	if rpcStatus, err := c.FindAndOpenSession(ctx, uuid.SMMVariable); err != nil || rpcStatus != status.Success {
		stack.Close()
		if err == nil {
			err = fmt.Errorf("open session: %s", rpcStatus)
		}
		return nil, nil, err
	}

	return c, stack, nil
}

func runVarsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	c, stack, err := openDirectCaller(ctx)
	if err != nil {
		return err
	}
	defer stack.Close()
	defer c.CloseSession(ctx)

	var mem shmem.SharedMemory
	if st := c.CreateSharedMemory(ctx, 8192, &mem); st != status.Success {
		return fmt.Errorf("allocate shared memory: %s", st)
	}
	defer c.ReleaseSharedMemory(ctx, &mem)

	table := output.NewTableData("GUID", "NAME", "ATTRIBUTES", "SIZE")

	guid, name := meta.Guid{}, meta.Name(nil)
	for {
		req := uefismm.EncodeGetNextVariableNameRequest(guid, name)
		copy(mem.Buffer, req)
		respLen, svcStatus, rpcStatus := c.Call(ctx, uint16(uefismm.OpcodeGetNextVariableName), &mem, len(req))
		if rpcStatus != status.Success {
			return fmt.Errorf("get_next_variable_name: %s", rpcStatus)
		}
		if svcStatus != 0 {
			break // ErrNotFound: enumeration exhausted
		}

		nextGuid, nextName, decStatus := uefismm.DecodeGetNextVariableNameResponse(mem.Buffer[:respLen])
		if decStatus != efistatus.Success {
			return fmt.Errorf("decode get_next_variable_name response: %s", decStatus)
		}

		getReq := uefismm.EncodeGetVariableRequest(nextGuid, nextName)
		copy(mem.Buffer, getReq)
		getRespLen, getSvcStatus, getRPCStatus := c.Call(ctx, uint16(uefismm.OpcodeGetVariable), &mem, len(getReq))
		if getRPCStatus == status.Success && getSvcStatus == 0 {
			attrs, payload, _ := uefismm.DecodeGetVariableResponse(mem.Buffer[:getRespLen])
			table.AddRow(nextGuid.String(), nextName.String(), fmt.Sprintf("0x%08x", attrs), fmt.Sprintf("%d", len(payload)))
		}

		guid, name = nextGuid, nextName
	}

	return output.PrintTable(os.Stdout, table)
}
