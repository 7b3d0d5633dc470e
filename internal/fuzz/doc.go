// Package fuzztests houses Go fuzz harnesses that exercise the analysis
// pipeline (tree document -> index -> CFG -> inference -> merge). Its goal is
// to smoke test robustness and guard against internal faults or hangs on
// arbitrary documents.
//
// Назначение: подавать байты как *.tree.json и прогонять их через pipeline.
//
// Не делает: генерацию корпусов, запись файлов, выполнение CLI.
package fuzztests
