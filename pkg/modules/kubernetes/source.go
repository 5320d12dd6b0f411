package kubernetes

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/edgeopslabs/marketing-mcp/pkg/config"
	"github.com/edgeopslabs/marketing-mcp/pkg/content"
	"github.com/edgeopslabs/marketing-mcp/pkg/registry"
	"github.com/edgeopslabs/marketing-mcp/pkg/types"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
)

const (
	sourceName     = config.SourceConfigMap
	rewatchBackoff = 2 * time.Second
)

// Source reads the content snapshot from a key of a Kubernetes ConfigMap.
type Source struct {
	newClient func(cfg config.ConfigMapConfig) (kubernetes.Interface, error)
}

func New() *Source {
	return &Source{newClient: newClientset}
}

func (s *Source) Name() string {
	return sourceName
}

func (s *Source) Enabled(cfg *config.Config) bool {
	cm := cfg.Content.ConfigMap
	return cm.Name != "" && cm.Key != ""
}

func (s *Source) Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (content.Store, error) {
	client, err := s.newClient(cfg.Content.ConfigMap)
	if err != nil {
		return nil, fmt.Errorf("k8s auth failed: %w", err)
	}
	store := &Store{
		MemoryStore: content.NewMemoryStore(nil),
		client:      client,
		cm:          cfg.Content.ConfigMap,
		siteURL:     cfg.Content.SiteURL,
		logger:      logger,
	}

	configMap, err := client.CoreV1().ConfigMaps(store.cm.Namespace).Get(ctx, store.cm.Name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get configmap %s/%s: %w", store.cm.Namespace, store.cm.Name, err)
	}
	if err := store.apply(configMap); err != nil {
		return nil, err
	}
	return store, nil
}

// Store serves the snapshot held in the ConfigMap and follows updates to it
// when watching is enabled.
type Store struct {
	*content.MemoryStore
	client  kubernetes.Interface
	cm      config.ConfigMapConfig
	siteURL string
	logger  *slog.Logger
}

func (s *Store) apply(configMap *corev1.ConfigMap) error {
	data, ok := configMap.Data[s.cm.Key]
	if !ok {
		return fmt.Errorf("configmap %s/%s has no key %q", configMap.Namespace, configMap.Name, s.cm.Key)
	}
	snap, err := content.ParseSnapshot([]byte(data))
	if err != nil {
		return fmt.Errorf("configmap %s/%s: %w", configMap.Namespace, configMap.Name, err)
	}
	if snap.SiteURL == "" {
		snap.SiteURL = s.siteURL
	}
	s.Replace(snap)
	s.logger.Info("content snapshot applied",
		"configmap", configMap.Namespace+"/"+configMap.Name,
		"resourceVersion", configMap.ResourceVersion,
		"posts", len(snap.Posts))
	return nil
}

// Watch follows the ConfigMap until ctx is done, re-establishing the watch
// when the API server closes it.
func (s *Store) Watch(ctx context.Context) error {
	if !s.cm.Watch {
		return nil
	}
	selector := fields.OneTermEqualSelector("metadata.name", s.cm.Name).String()
	for {
		w, err := s.client.CoreV1().ConfigMaps(s.cm.Namespace).Watch(ctx, metav1.ListOptions{FieldSelector: selector})
		if err != nil {
			s.logger.Warn("configmap watch failed", "namespace", s.cm.Namespace, "name", s.cm.Name, "error", err)
		} else {
			s.consume(ctx, w)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(rewatchBackoff):
		}
	}
}

func (s *Store) consume(ctx context.Context, w watch.Interface) {
	defer w.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.ResultChan():
			if !ok {
				return
			}
			configMap, isConfigMap := event.Object.(*corev1.ConfigMap)
			if !isConfigMap || configMap.Name != s.cm.Name {
				continue
			}
			switch event.Type {
			case watch.Added, watch.Modified:
				if err := s.apply(configMap); err != nil {
					s.logger.Warn("configmap update rejected, keeping previous snapshot", "error", err)
				}
			case watch.Deleted:
				s.logger.Warn("configmap deleted, keeping last snapshot", "namespace", s.cm.Namespace, "name", s.cm.Name)
			}
		}
	}
}

func newClientset(cm config.ConfigMapConfig) (kubernetes.Interface, error) {
	kubeconfig := resolveKubeconfig(cm.Kubeconfig)
	var (
		restCfg *rest.Config
		err     error
	)
	if _, statErr := os.Stat(kubeconfig); kubeconfig == "" || statErr != nil {
		restCfg, err = rest.InClusterConfig()
	} else {
		restCfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	if err != nil {
		return nil, err
	}
	return kubernetes.NewForConfig(restCfg)
}

func resolveKubeconfig(path string) string {
	if path == "" {
		if home := homedir.HomeDir(); home != "" {
			return filepath.Join(home, ".kube", "config")
		}
		return ""
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~/"))
		}
	}

	return path
}

func init() {
	registry.Register(sourceName, New())
}

var (
	_ types.ContentSource = (*Source)(nil)
	_ content.Watcher     = (*Store)(nil)
)
