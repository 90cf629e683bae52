package main

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/config"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/digitalink"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/hwr"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/log"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/manager"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/model"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/recognizer"
	"github.com/spokenaac/capacitor-mlkit-digitalink-plugin/store"
)

// app owns everything main wires together.
type app struct {
	cfg     config.Config
	store   *store.Store
	manager *manager.Local
	plugin  *digitalink.Plugin
}

func newApp(cfg config.Config) (*app, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Models.Database), 0700); err != nil {
		return nil, errors.Wrap(err, "can't create data dir")
	}
	st, err := store.New(cfg.Models.Database)
	if err != nil {
		return nil, err
	}

	mgr, err := manager.NewLocal(manager.LocalConfig{
		Dir:         cfg.Models.Dir,
		BaseURL:     cfg.Models.BaseURL,
		Concurrency: cfg.Models.Concurrency,
	}, st)
	if err != nil {
		st.Close()
		return nil, err
	}

	a := &app{cfg: cfg, store: st, manager: mgr}

	catalog := model.DefaultCatalog()
	if cfg.Catalog != "" {
		catalog, err = model.LoadCatalog(cfg.Catalog)
		if err != nil {
			a.Close()
			return nil, err
		}
	}
	reg, err := model.NewRegistry(catalog, mgr, cfg.DefaultModel)
	if err != nil {
		a.Close()
		return nil, err
	}

	var rec recognizer.Recognizer = recognizer.Unavailable{
		Reason: "no recognizer configured (recognizer.application_key, recognizer.hmac_key)",
	}
	if cfg.HasRecognizer() {
		client, err := hwr.NewClient(cfg.Recognizer.URL, cfg.Recognizer.ApplicationKey, cfg.Recognizer.HMACKey, cfg.Recognizer.Timeout)
		if err != nil {
			a.Close()
			return nil, err
		}
		rec = client
	} else {
		log.Warning.Println("no recognizer credentials, recognition will fail")
	}

	a.plugin, err = digitalink.New(digitalink.Options{
		Manager:    mgr,
		Recognizer: rec,
		Registry:   reg,
		Conditions: manager.Conditions{
			AllowCellular:   cfg.Models.AllowCellular,
			AllowBackground: cfg.Models.AllowBackground,
		},
		DownloadDefaultOnInit: cfg.Models.DownloadDefaultOnInit,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) Close() {
	if a.plugin != nil {
		a.plugin.Close()
	}
	a.manager.Close()
	a.store.Close()
}
