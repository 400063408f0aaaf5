package obs

import (
	"context"
	"time"

	"github.com/bft-labs/obsrelay/internal/app"
	"github.com/bft-labs/obsrelay/internal/domain"
)

// BotControl is the bot surface published as operations.
type BotControl interface {
	Stop() error
	Status() app.BotStatus
}

// Operations returns the operation table in publication order. Bot
// operations are left out when bot is nil.
func Operations(c *Controller, bot BotControl) []app.Operation {
	ops := []app.Operation{
		request(c, "getScenesList", "GetSceneList"),
		request(c, "getVersion", "GetVersion"),
		request(c, "getStats", "GetStats"),
		request(c, "getHotkeyList", "GetHotkeyList"),
		request(c, "getProfileList", "GetProfileList"),
		request(c, "getVideoSettings", "GetVideoSettings"),
		request(c, "getRecordDirectory", "GetRecordDirectory"),
		request(c, "getStreamStatus", "GetStreamStatus"),
		request(c, "getRecordStatus", "GetRecordStatus"),
		request(c, "getVirtualCamStatus", "GetVirtualCamStatus"),
		request(c, "getSceneTransitionList", "GetSceneTransitionList"),
		request(c, "getCurrentSceneTransition", "GetCurrentSceneTransition"),
		request(c, "getGroupList", "GetGroupList"),
		{
			Name: "getInputList",
			Invoke: func(ctx context.Context, _ app.Args) (any, error) {
				return c.GetInputList(ctx)
			},
		},
		request(c, "getAudioSources", "GetSpecialInputs"),
		{
			Name: "checkconnection",
			Invoke: func(ctx context.Context, _ app.Args) (any, error) {
				return c.CheckConnection(ctx)
			},
		},
		{
			Name: "saveReplayBuffer",
			Invoke: func(ctx context.Context, _ app.Args) (any, error) {
				return c.SaveReplayBuffer(ctx)
			},
		},
		{
			Name: "stopReplayBuffer",
			Invoke: func(ctx context.Context, _ app.Args) (any, error) {
				return c.StopReplayBuffer(ctx)
			},
		},

		requestBy(c, "getSourceActive", "GetSourceActive", "sourceName"),
		{
			Name:           "getInputVolume",
			RequiredParams: []string{"inputName"},
			Invoke: func(ctx context.Context, args app.Args) (any, error) {
				name, err := args.String(0)
				if err != nil {
					return nil, err
				}
				return c.GetInputVolume(ctx, name)
			},
		},
		requestBy(c, "getSceneItemList", "GetSceneItemList", "sceneName"),
		{
			Name:           "setCurrentScene",
			RequiredParams: []string{"sceneName"},
			Invoke: func(ctx context.Context, args app.Args) (any, error) {
				scene, err := args.String(0)
				if err != nil {
					return nil, err
				}
				return c.SetCurrentScene(ctx, scene)
			},
		},
		{
			Name:           "createClip",
			RequiredParams: []string{"duration"},
			Invoke: func(ctx context.Context, args app.Args) (any, error) {
				seconds, err := args.IntOr(0, 0)
				if err != nil {
					return nil, err
				}
				return c.CreateClip(ctx, seconds)
			},
		},
		{
			Name:           "setupReplayBuffer",
			RequiredParams: []string{"duration"},
			Invoke: func(ctx context.Context, args app.Args) (any, error) {
				seconds, err := args.IntOr(0, 0)
				if err != nil {
					return nil, err
				}
				return c.SetupReplayBuffer(ctx, seconds)
			},
		},
		{
			Name:           "setInputVolume",
			RequiredParams: []string{"inputName", "db", "multiplier"},
			Invoke: func(ctx context.Context, args app.Args) (any, error) {
				name, err := args.String(0)
				if err != nil {
					return nil, err
				}
				change, err := volumeChangeFrom(args)
				if err != nil {
					return nil, err
				}
				return c.SetInputVolume(ctx, name, change)
			},
		},
		{
			Name:           "setAudioMute",
			RequiredParams: []string{"inputName", "toggle"},
			Invoke: func(ctx context.Context, args app.Args) (any, error) {
				name, err := args.String(0)
				if err != nil {
					return nil, err
				}
				mute, err := args.Bool(1)
				if err != nil {
					return nil, err
				}
				return c.SetAudioMute(ctx, name, mute)
			},
		},
		{
			Name:           "setSourceVisibility",
			RequiredParams: []string{"sceneName", "sceneItemId", "toggle"},
			Invoke: func(ctx context.Context, args app.Args) (any, error) {
				scene, err := args.String(0)
				if err != nil {
					return nil, err
				}
				id, err := args.Int(1)
				if err != nil {
					return nil, err
				}
				visible, err := args.Bool(2)
				if err != nil {
					return nil, err
				}
				return c.SetSourceVisibility(ctx, scene, id, visible)
			},
		},
		{
			Name:           "connect",
			RequiredParams: []string{"ip", "port", "auth"},
			Invoke: func(ctx context.Context, args app.Args) (any, error) {
				params, err := ConnectionParamsFrom(args)
				if err != nil {
					return nil, err
				}
				return c.Connect(ctx, params)
			},
		},
	}

	if bot != nil {
		ops = append(ops,
			app.Operation{
				Name: "disconnectBot",
				Invoke: func(ctx context.Context, _ app.Args) (any, error) {
					if err := bot.Stop(); err != nil {
						return nil, err
					}
					return bot.Status(), nil
				},
			},
			app.Operation{
				Name: "botStatus",
				Invoke: func(ctx context.Context, _ app.Args) (any, error) {
					return bot.Status(), nil
				},
			},
		)
	}
	return ops
}

// Register adds every operation to catalog.
func Register(catalog *app.Catalog, c *Controller, bot BotControl) error {
	for _, op := range Operations(c, bot) {
		if err := catalog.Register(op); err != nil {
			return err
		}
	}
	return nil
}

// ConnectionParamsFrom reads [host, port, password] positional arguments. A
// password that is false or null means no authentication.
func ConnectionParamsFrom(args app.Args) (domain.ConnectionParams, error) {
	var p domain.ConnectionParams
	if args.Present(0) {
		host, err := args.String(0)
		if err != nil {
			return p, err
		}
		p.Host = host
	}
	port, err := args.IntOr(1, 0)
	if err != nil {
		return p, err
	}
	p.Port = port
	if args.Present(2) {
		var password string
		if args.Decode(2, &password) == nil {
			p.Password = password
		}
	}
	return p.WithDefaults(), nil
}

// volumeChangeFrom reads [inputName, db, multiplier, smooth, smoothMs].
func volumeChangeFrom(args app.Args) (VolumeChange, error) {
	var change VolumeChange
	if args.Present(1) {
		db, err := args.Float(1)
		if err != nil {
			return change, err
		}
		change.DB = &db
	}
	if args.Present(2) {
		m, err := args.Float(2)
		if err != nil {
			return change, err
		}
		change.Multiplier = &m
	}
	if args.Present(3) {
		smooth, err := args.Bool(3)
		if err != nil {
			return change, err
		}
		change.Smooth = smooth
	}
	ms, err := args.IntOr(4, 0)
	if err != nil {
		return change, err
	}
	change.Duration = time.Duration(ms) * time.Millisecond
	return change, nil
}

func request(c *Controller, name, requestType string) app.Operation {
	return app.Operation{
		Name: name,
		Invoke: func(ctx context.Context, _ app.Args) (any, error) {
			return c.Request(ctx, requestType, nil)
		},
	}
}

func requestBy(c *Controller, name, requestType, param string) app.Operation {
	return app.Operation{
		Name:           name,
		RequiredParams: []string{param},
		Invoke: func(ctx context.Context, args app.Args) (any, error) {
			v, err := args.String(0)
			if err != nil {
				return nil, err
			}
			return c.Request(ctx, requestType, map[string]any{param: v})
		},
	}
}
