package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"DocTrack/internal/dbcontext"
	"DocTrack/internal/shared/idgen"
	sharedmongo "DocTrack/internal/shared/infrastructure/mongo"
	"DocTrack/internal/shared/logs"
	"DocTrack/internal/shared/metrics"
	"DocTrack/internal/shared/serverconfig"
	"DocTrack/internal/store/mongodb"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// probeDoc 是探测用的实体，只写入 doctrack_probe 集合。
type probeDoc struct {
	ID        int64     `mongo:",id,snowflake"`
	Name      string    `mongo:"name"`
	Counter   int       `mongo:"counter"`
	Tags      []string  `mongo:"tags"`
	TenantID  string    `mongo:"tenant_id,tenant"`
	CheckedAt time.Time `mongo:"checked_at"`
}

func (probeDoc) CollectionName() string {
	return "doctrack_probe"
}

var (
	cfgName string
	tenant  string
	keep    bool
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "probe",
	Short: "Round-trip a document through the change tracker against MongoDB",
	Long: `probe 连接配置中的 MongoDB，依次执行 新增 -> 保存 -> 读取 -> 修改 -> 保存 -> 删除 -> 保存，
每一步都写日志，用于验证部署环境的连通性与写权限。`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgName, "config", "c", "", "config file (default: search configs/conf.yml upward)")
	rootCmd.PersistentFlags().StringVar(&tenant, "tenant", "", "tenant id, overrides tracking.tenant_id")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	rootCmd.Flags().BoolVar(&keep, "keep", false, "keep the probe document instead of deleting it")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	serverconfig.Load(cfgName)
	conf := serverconfig.Conf
	if err := logs.Init("probe", conf.Log); err != nil {
		return err
	}
	defer func() { _ = logs.Sync() }()
	if verbose {
		logs.SetLevel("debug")
	}
	if tenant == "" {
		tenant = conf.Tracking.TenantID
	}
	if err := idgen.Configure(conf.Tracking.NodeID); err != nil {
		return err
	}
	logs.Info("conf", zap.Any("mongodb", conf.MongoDB), zap.String("tenant", tenant), zap.Int64("node_id", conf.Tracking.NodeID))

	client, err := sharedmongo.Open(ctx, conf.MongoDB, logs.Logger())
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Disconnect(context.Background())
	}()

	reg := prometheus.NewRegistry()
	db := dbcontext.New(
		mongodb.NewStore(client.Database(conf.MongoDB.Database), logs.Kit()),
		dbcontext.WithTenant(tenant),
		dbcontext.WithLogger(logs.Kit()),
		dbcontext.WithMetrics(metrics.New(reg)),
		dbcontext.WithSlowSave(conf.Tracking.SlowSave),
	)
	docs, err := dbcontext.NewSet[probeDoc](db)
	if err != nil {
		return err
	}

	timeout := time.Duration(conf.Tracking.SaveTimeoutS) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	save := func(step string) error {
		sctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := db.SaveChanges(sctx); err != nil {
			logs.Error("probe step failed", zap.String("step", step), zap.Error(err))
			return err
		}
		logs.Info("probe step ok", zap.String("step", step))
		return nil
	}

	doc := &probeDoc{Name: "probe", Tags: []string{"a"}, CheckedAt: time.Now().UTC()}
	if err := docs.Add(doc); err != nil {
		return err
	}
	if err := save("insert"); err != nil {
		return err
	}

	// 新上下文读取，确认数据确实落库
	reader := dbcontext.New(
		mongodb.NewStore(client.Database(conf.MongoDB.Database), logs.Kit()),
		dbcontext.WithTenant(tenant),
		dbcontext.WithLogger(logs.Kit()),
	)
	readerDocs, err := dbcontext.NewSet[probeDoc](reader)
	if err != nil {
		return err
	}
	found, err := readerDocs.Find(ctx, doc.ID)
	if err != nil {
		return err
	}
	if found == nil {
		return fmt.Errorf("probe: document %d not found after insert", doc.ID)
	}
	parts := idgen.Decompose(found.ID)
	logs.Info("probe step ok", zap.String("step", "find"), zap.Int64("id", found.ID),
		zap.Int64("node_id", parts.NodeID), zap.Time("id_time", parts.Time))

	doc.Counter++
	doc.Tags = append(doc.Tags, "b")
	if err := save("update"); err != nil {
		return err
	}

	if !keep {
		if err := docs.Remove(doc); err != nil {
			return err
		}
		if err := save("delete"); err != nil {
			return err
		}
	}
	logs.Info("probe done", zap.Int64("id", doc.ID), zap.Bool("kept", keep))
	return nil
}
