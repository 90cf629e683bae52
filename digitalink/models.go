package digitalink

import "context"

// GetDownloadedModels refreshes the downloaded set from the device.
func (p *Plugin) GetDownloadedModels(ctx context.Context) (Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, err := p.reg.RefreshDownloadedSet(ctx)
	if err != nil {
		return fail(newError(ErrManager, "", "Can't list downloaded models: %v", err))
	}

	if set.Len() == 0 {
		return Response{OK: true, Msg: "No models are downloaded.", Models: []string{}}, nil
	}
	return Response{OK: true, Msg: "Downloaded models retrieved.", Models: set.Strings()}, nil
}
