package metrics

import "github.com/prometheus/client_golang/prometheus"

// 排序/同步引擎的业务指标。中间件指标按请求采集，这里按引擎事件采集。
var (
	PinConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devfolio",
			Subsystem: "engine",
			Name:      "pin_conflicts_total",
			Help:      "置顶顺序冲突被拒绝的次数。",
		},
		[]string{"kind"},
	)

	CollectionReplacements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devfolio",
			Subsystem: "engine",
			Name:      "collection_replacements_total",
			Help:      "有序集合整体替换的次数。",
		},
		[]string{"category"},
	)

	InternedNames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devfolio",
			Subsystem: "engine",
			Name:      "interned_names_total",
			Help:      "同名查找未命中而新建共享实体的次数。",
		},
		[]string{"relation"},
	)
)

func init() {
	prometheus.MustRegister(PinConflicts, CollectionReplacements, InternedNames)
}
