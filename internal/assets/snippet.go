package assets

import (
	"fmt"
	"path/filepath"
	"strings"

	"scene-bridge/internal/domain"
)

// ImportSnippet genera el código de import para un asset de la librería,
// usando el operador correcto del host según la extensión. Es la misma
// superficie que genera el backend, así que pasa el gate de seguridad.
func ImportSnippet(entry domain.AssetEntry) string {
	path := strings.ReplaceAll(entry.Path, `\`, `\\`)
	name := filepath.Base(entry.Path)
	ext := strings.ToLower(filepath.Ext(entry.Path))

	var importCall string
	switch ext {
	case ".blend":
		importCall = `with bpy.data.libraries.load(model_path, link=False) as (data_from, data_to):
        data_to.objects = data_from.objects
    for obj in data_to.objects:
        if obj is not None:
            bpy.context.collection.objects.link(obj)`
	case ".fbx":
		importCall = `bpy.ops.import_scene.fbx(filepath=model_path)`
	case ".obj":
		importCall = `bpy.ops.import_scene.obj(filepath=model_path)`
	case ".gltf", ".glb":
		importCall = `bpy.ops.import_scene.gltf(filepath=model_path)`
	case ".stl":
		importCall = `bpy.ops.import_mesh.stl(filepath=model_path)`
	default:
		importCall = `raise RuntimeError("unsupported asset format")`
	}

	return fmt.Sprintf(`import bpy

def scene_action(context):
    """Import %s from the asset library."""
    model_path = "%s"
    %s
`, name, path, importCall)
}
