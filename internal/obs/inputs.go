package obs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bft-labs/obsrelay/internal/ports"
)

type inputVolumeResponse struct {
	InputVolumeDb  float64 `json:"inputVolumeDb"`
	InputVolumeMul float64 `json:"inputVolumeMul"`
}

// Volume is an input level in both scales.
type Volume struct {
	DB         float64 `json:"db"`
	Multiplier float64 `json:"multiplier"`
}

// InputVolume is the reply of getInputVolume and setInputVolume.
type InputVolume struct {
	InputName string `json:"inputName"`
	Volume    Volume `json:"volume"`
}

// InputList is GetInputList with each audio input's volume merged in.
type InputList struct {
	Inputs []map[string]any `json:"inputs"`
}

// GetInputList lists inputs and adds inputVolumeDb / inputVolumeMul to those
// that report a volume. Inputs without audio are returned unchanged.
func (c *Controller) GetInputList(ctx context.Context) (InputList, error) {
	raw, err := c.Request(ctx, "GetInputList", nil)
	if err != nil {
		return InputList{}, err
	}
	var list InputList
	if err := decode("GetInputList", raw, &list); err != nil {
		return InputList{}, err
	}
	if list.Inputs == nil {
		list.Inputs = []map[string]any{}
	}

	for _, input := range list.Inputs {
		name, _ := input["inputName"].(string)
		if name == "" {
			continue
		}
		var v inputVolumeResponse
		if err := c.call(ctx, "GetInputVolume", map[string]any{"inputName": name}, &v); err != nil {
			c.logger.Debug("input has no volume", ports.String("input", name), ports.Err(err))
			continue
		}
		if v.InputVolumeDb == 0 && v.InputVolumeMul == 0 {
			continue
		}
		input["inputVolumeDb"] = v.InputVolumeDb
		input["inputVolumeMul"] = v.InputVolumeMul
	}
	return list, nil
}

// GetInputVolume reads one input's volume.
func (c *Controller) GetInputVolume(ctx context.Context, inputName string) (InputVolume, error) {
	if err := c.guard.EnsureConnected(ctx); err != nil {
		return InputVolume{}, err
	}
	return c.readVolume(ctx, inputName)
}

// SetAudioMute mutes or unmutes an input.
func (c *Controller) SetAudioMute(ctx context.Context, inputName string, mute bool) (bool, error) {
	if _, err := c.Request(ctx, "SetInputMute", map[string]any{
		"inputName":  inputName,
		"inputMuted": mute,
	}); err != nil {
		return false, err
	}
	return true, nil
}

// SetSourceVisibility shows or hides a scene item.
func (c *Controller) SetSourceVisibility(ctx context.Context, sceneName string, sceneItemID int, visible bool) (bool, error) {
	if _, err := c.Request(ctx, "SetSceneItemEnabled", map[string]any{
		"sceneName":        sceneName,
		"sceneItemId":      sceneItemID,
		"sceneItemEnabled": visible,
	}); err != nil {
		return false, err
	}
	return true, nil
}

// SetCurrentScene switches the program scene.
func (c *Controller) SetCurrentScene(ctx context.Context, sceneName string) (map[string]string, error) {
	if _, err := c.Request(ctx, "SetCurrentProgramScene", map[string]any{"sceneName": sceneName}); err != nil {
		return nil, err
	}
	return map[string]string{"sceneName": sceneName}, nil
}

func (c *Controller) readVolume(ctx context.Context, inputName string) (InputVolume, error) {
	var v inputVolumeResponse
	if err := c.call(ctx, "GetInputVolume", map[string]any{"inputName": inputName}, &v); err != nil {
		return InputVolume{}, err
	}
	return InputVolume{
		InputName: inputName,
		Volume:    Volume{DB: v.InputVolumeDb, Multiplier: v.InputVolumeMul},
	}, nil
}

func decode(requestType string, raw json.RawMessage, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", requestType, err)
	}
	return nil
}
