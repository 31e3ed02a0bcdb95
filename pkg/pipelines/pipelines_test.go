package pipelines_test

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfreitas/attenda/pkg/actions/completetask"
	"github.com/cfreitas/attenda/pkg/actions/createdraft"
	"github.com/cfreitas/attenda/pkg/actions/createfollowup"
	"github.com/cfreitas/attenda/pkg/actions/createtask"
	"github.com/cfreitas/attenda/pkg/actions/schedulemeeting"
	"github.com/cfreitas/attenda/pkg/actions/sendemail"
	"github.com/cfreitas/attenda/pkg/actions/updatetask"
	"github.com/cfreitas/attenda/pkg/approval"
	"github.com/cfreitas/attenda/pkg/models"
	"github.com/cfreitas/attenda/pkg/persistence"
	"github.com/cfreitas/attenda/pkg/persistence/file"
	"github.com/cfreitas/attenda/pkg/pipeline"
	"github.com/cfreitas/attenda/pkg/pipelines"
	"github.com/cfreitas/attenda/pkg/protocol"
	"github.com/cfreitas/attenda/pkg/reasoner/rulebased"
	"github.com/cfreitas/attenda/pkg/registry"
	"github.com/cfreitas/attenda/pkg/wellness"
)

// testRig wires the full step dependency set over file persistence, the way
// the agent runtime does at startup.
type testRig struct {
	deps    pipelines.Deps
	engine  *pipeline.Engine
	reg     *pipeline.Registry
	persist persistence.Persistence
	gateway *approval.Gateway
}

func newRig(t *testing.T) *testRig {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	persist := file.NewPersistence(t.TempDir())
	gateway := approval.NewGateway(persist, nil, logger)
	executors := registry.NewRegistry(logger)

	for _, factory := range []protocol.ExecutorFactory{
		createtask.NewFactory(persist),
		updatetask.NewFactory(persist),
		completetask.NewFactory(persist),
		createfollowup.NewFactory(persist),
		createdraft.NewFactory(persist),
		sendemail.NewFactory(persist),
		schedulemeeting.NewFactory(persist),
	} {
		executors.RegisterExecutor(factory)
		require.NoError(t, gateway.RegisterFactory(t.Context(), factory))
	}

	deps := pipelines.Deps{
		Persistence: persist,
		Reasoner:    rulebased.New(),
		Wellness:    wellness.NewEvaluator(persist, logger),
		Gateway:     gateway,
		Executors:   executors,
		Logger:      logger,
	}

	reg := pipeline.NewRegistry()
	require.NoError(t, pipelines.RegisterAll(reg, deps))

	return &testRig{
		deps:    deps,
		engine:  pipeline.NewEngine(persist, nil, nil, logger),
		reg:     reg,
		persist: persist,
		gateway: gateway,
	}
}

// run invokes the named pipeline against a fresh session for the item.
func (r *testRig) run(t *testing.T, name string, item *models.WorkItem) *models.ExecutionState {
	t.Helper()

	def, err := r.reg.Get(name)
	require.NoError(t, err)

	state := models.NewExecutionState(name, item, def.MaxIterations)

	final, err := r.engine.Invoke(t.Context(), def, state)
	require.NoError(t, err)

	return final
}

func TestRegisterAll(t *testing.T) {
	t.Parallel()

	rig := newRig(t)

	assert.Equal(t, []string{
		pipelines.InboxName,
		pipelines.MeetingName,
		pipelines.TaskTriageName,
		pipelines.WellnessName,
	}, rig.reg.Names())

	for _, name := range rig.reg.Names() {
		def, err := rig.reg.Get(name)
		require.NoError(t, err)
		assert.NoError(t, def.Validate())
	}
}
