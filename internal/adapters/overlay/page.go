package overlay

// overlayPage is the self-contained overlay HTML. It is meant to be loaded
// as a browser source in a streaming tool or pinned in a corner window,
// subscribes over the websocket feed, and falls back to polling /vars when
// the socket drops.
const overlayPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>lootledger overlay</title>
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    font-family: 'JetBrains Mono', 'Consolas', monospace;
    background: rgba(13, 17, 23, 0.85);
    color: #c9d1d9;
    padding: 10px 14px;
    font-size: 13px;
    width: 320px;
  }
  .row { display: flex; justify-content: space-between; padding: 2px 0; }
  .label { color: #7d8590; }
  .value { color: #c9d1d9; font-weight: 600; }
  .value.gold { color: #d29922; }
  .value.green { color: #3fb950; }
  .section {
    border-top: 1px solid #30363d;
    margin-top: 6px;
    padding-top: 6px;
  }
  .section-title {
    color: #58a6ff;
    font-size: 11px;
    text-transform: uppercase;
    letter-spacing: 1px;
    margin-bottom: 2px;
  }
  .drop { color: #a5d6ff; }
  #status { float: right; font-size: 10px; color: #f85149; }
  #status.live { color: #3fb950; }
</style>
</head>
<body>
  <div class="section-title">Session <span id="status">offline</span></div>
  <div class="row"><span class="label">Maps</span><span class="value" id="maps">0</span></div>
  <div class="row"><span class="label">Value</span><span class="value gold" id="total">0</span></div>
  <div class="row"><span class="label">Per hour</span><span class="value green" id="vph">0</span></div>
  <div class="row"><span class="label">Time</span><span class="value" id="time">0m</span></div>

  <div class="section">
    <div class="section-title">Last map</div>
    <div class="row"><span class="label" id="map_name">-</span><span class="value gold" id="map_value">-</span></div>
    <div class="row"><span class="label">Runtime</span><span class="value" id="map_runtime">-</span></div>
  </div>

  <div class="section">
    <div class="section-title">Top drops</div>
    <div id="drops"><div class="row"><span class="drop">none yet</span></div></div>
  </div>

<script>
  function set(id, key, vars, fallback) {
    var el = document.getElementById(id);
    el.textContent = (key in vars) ? vars[key] : fallback;
  }

  function render(vars) {
    set('maps', 'session_maps_completed', vars, '0');
    set('total', 'session_total_value_fmt', vars, '0');
    set('vph', 'session_value_per_hour_fmt', vars, '0');
    set('time', 'session_time', vars, '0m');
    set('map_name', 'map_name', vars, '-');
    set('map_value', 'map_value_fmt', vars, '-');
    set('map_runtime', 'map_runtime_fmt', vars, '-');

    var drops = document.getElementById('drops');
    drops.innerHTML = '';
    var any = false;
    for (var i = 1; i <= 3; i++) {
      var name = vars['session_top_drop_' + i + '_name'];
      if (!name) continue;
      any = true;
      var row = document.createElement('div');
      row.className = 'row';
      row.innerHTML = '<span class="drop">' + name + ' x' +
        vars['session_top_drop_' + i + '_stack'] + '</span><span class="value gold">' +
        vars['session_top_drop_' + i + '_value_fmt'] + '</span>';
      drops.appendChild(row);
    }
    if (!any) {
      drops.innerHTML = '<div class="row"><span class="drop">none yet</span></div>';
    }
  }

  function poll() {
    fetch('/vars').then(function(r) { return r.json(); }).then(function(resp) {
      if (resp.success) render(resp.data);
    }).catch(function() {});
  }

  function connect() {
    var proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
    var ws = new WebSocket(proto + location.host + '/ws');
    var status = document.getElementById('status');
    ws.onopen = function() { status.textContent = 'live'; status.className = 'live'; };
    ws.onmessage = function(ev) { render(JSON.parse(ev.data)); };
    ws.onclose = function() {
      status.textContent = 'offline';
      status.className = '';
      poll();
      setTimeout(connect, 3000);
    };
  }

  poll();
  connect();
</script>
</body>
</html>`
